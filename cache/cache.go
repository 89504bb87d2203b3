package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// RenderCache keeps rendered blog HTML on disk, one directory per blog.
// Entries are keyed by a hash of the source content, so an edited blog
// never serves stale HTML.
type RenderCache struct {
	root string
}

func NewRenderCache(root string) *RenderCache {
	if root == "" {
		root = "cache"
	}
	return &RenderCache{root: root}
}

// ContentHash returns the xxHash of content as 16 hex digits.
func ContentHash(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}

// GetCachePath returns the cache file path for a blog's rendered content.
func (r *RenderCache) GetCachePath(blogID, hash string) string {
	return filepath.Join(r.root, blogID, hash+".html")
}

// Read returns the cached HTML for blogID/hash if present.
func (r *RenderCache) Read(blogID, hash string) (string, bool) {
	content, err := os.ReadFile(r.GetCachePath(blogID, hash))
	if err != nil {
		return "", false
	}
	return string(content), true
}

// Write stores html for blogID/hash, replacing older renders of that blog.
func (r *RenderCache) Write(blogID, hash, html string) error {
	dir := filepath.Join(r.root, blogID)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(r.GetCachePath(blogID, hash), []byte(html), 0644)
}

// ClearBlog removes every cached render of a blog.
func (r *RenderCache) ClearBlog(blogID string) error {
	if blogID == "" || strings.ContainsAny(blogID, `/\`) {
		return fmt.Errorf("invalid blog id %q", blogID)
	}
	return os.RemoveAll(filepath.Join(r.root, blogID))
}

// ClearOld removes cache files older than maxAge.
func (r *RenderCache) ClearOld(maxAge time.Duration) error {
	return filepath.Walk(r.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}

		return nil
	})
}
