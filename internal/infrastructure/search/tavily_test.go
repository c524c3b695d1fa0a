package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/genosma/internal/domain"
)

func TestTavilySearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "key", req.APIKey)
		assert.Equal(t, "install nginx ubuntu", req.Query)
		assert.Equal(t, 2, req.MaxResults)

		_, _ = w.Write([]byte(`{"results": [
			{"title": "A", "url": "https://a", "content": "apt-get install nginx", "score": 0.9},
			{"title": "empty", "url": "https://b", "content": "   "},
			{"title": "C", "url": "https://c", "content": "systemctl enable nginx", "score": 0.5},
			{"title": "D", "url": "https://d", "content": "ignored"}
		]}`))
	}))
	defer server.Close()

	client := NewTavilyClient(server.URL, "key", 2, server.Client())
	snippets, err := client.Search(context.Background(), "install nginx ubuntu")
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, "A", snippets[0].Title)
	assert.Equal(t, "C", snippets[1].Title)
}

func TestTavilyFailuresAreUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewTavilyClient(server.URL, "key", 5, server.Client())
	_, err := client.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
	assert.Contains(t, err.Error(), "401")

	_, err = client.Search(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
}

func TestForConfig(t *testing.T) {
	lookup := func(values map[string]string) func(string) string {
		return func(k string) string { return values[k] }
	}

	cfg := domain.Config{Search: domain.SearchSettings{Enabled: false}}
	_, isDisabled := ForConfig(cfg, lookup(nil)).(Disabled)
	assert.True(t, isDisabled)

	cfg.Search = domain.SearchSettings{Enabled: true, Provider: "tavily"}
	_, isDisabled = ForConfig(cfg, lookup(nil)).(Disabled)
	assert.True(t, isDisabled, "missing key disables search")

	adapter := ForConfig(cfg, lookup(map[string]string{"TAVILY_API_KEY": "k"}))
	_, isTavily := adapter.(*TavilyClient)
	assert.True(t, isTavily)

	_, err := Disabled{}.Search(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
}
