package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/doeshing/genosma/internal/domain"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c := NewFileCache(t.TempDir(), time.Hour, 10)
	key := Key("groq-llama", "Create a directory named reports")
	if key != Key("groq-llama", "  create a   directory named reports ") {
		t.Fatal("keys should ignore case and spacing")
	}
	if key == Key("claude", "create a directory named reports") {
		t.Fatal("keys must differ per model")
	}

	want := domain.CacheEntry{
		Key:     key,
		Request: "create a directory named reports",
		Intent:  domain.Intent{TaskType: domain.TaskFilesystem, Complexity: domain.ComplexitySimple},
		Model:   "groq-llama",
	}
	if err := c.Set(want); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Intent.TaskType != domain.TaskFilesystem || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestFileCacheExpires(t *testing.T) {
	c := NewFileCache(t.TempDir(), time.Minute, 10)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	if err := c.Set(domain.CacheEntry{Key: "k"}); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok, _ := c.Get("k"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), "k.json")); !os.IsNotExist(err) {
		t.Fatalf("expired entry should be removed, stat err = %v", err)
	}
}

func TestFileCacheEvictsOldest(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir, 0, 2)
	for i, key := range []string{"a", "b", "c"} {
		if err := c.Set(domain.CacheEntry{Key: key}); err != nil {
			t.Fatal(err)
		}
		mod := time.Now().Add(time.Duration(i-10) * time.Minute)
		if err := os.Chtimes(filepath.Join(dir, key+".json"), mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Set(domain.CacheEntry{Key: "d"}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get("a"); ok {
		t.Fatal("oldest entry should be evicted")
	}
	if _, ok, _ := c.Get("d"); !ok {
		t.Fatal("newest entry should remain")
	}
}
