package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/genosma/internal/app"
)

// NewCacheCommand creates the cache command with all subcommands
func NewCacheCommand(container *app.Container) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the interpretation cache",
	}

	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached interpretation",
			RunE: func(cmd *cobra.Command, args []string) error {
				return clearCache(cmd.OutOrStdout(), container)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Show the cache directory and its size",
			RunE: func(cmd *cobra.Command, args []string) error {
				return showCacheLocation(cmd.OutOrStdout(), container)
			},
		},
	)

	return cacheCmd
}

func clearCache(out io.Writer, container *app.Container) error {
	if container.CacheStore == nil {
		return fmt.Errorf(ErrCacheStoreUnavailable)
	}
	if err := container.CacheStore.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Fprintln(out, MsgCacheCleared)
	return nil
}

func showCacheLocation(out io.Writer, container *app.Container) error {
	if container.CacheStore == nil {
		return fmt.Errorf(ErrCacheStoreUnavailable)
	}

	dir := container.CacheStore.Dir()
	files, totalSize, err := calculateDirectorySize(dir)
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}

	fmt.Fprintf(out, "Cache directory: %s\nEntries: %d\nSize: %s\n", dir, files, humanize.Bytes(uint64(totalSize)))
	return nil
}

// calculateDirectorySize counts regular files and their total size. A
// missing directory is an empty cache.
func calculateDirectorySize(dirPath string) (int, int64, error) {
	var (
		files     int
		totalSize int64
	)

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files++
		totalSize += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return files, totalSize, nil
}
