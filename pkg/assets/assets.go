// Package assets fetches model files (motions, expressions, sounds) by the
// paths settings files reference.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/teslashibe/go-cubism/internal/httpc"
)

// ErrNotFound is returned when an asset does not exist.
var ErrNotFound = errors.New("assets: not found")

// Fetcher reads an asset by its settings-relative path.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, name string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// FS reads assets from a file system, typically os.DirFS of the model folder.
type FS struct {
	fsys fs.FS
}

// NewFS creates an FS fetcher.
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// Fetch implements Fetcher.
func (f *FS) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(f.fsys, path.Clean(strings.TrimPrefix(name, "./")))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}

// HTTP fetches assets relative to a base URL.
type HTTP struct {
	base   *url.URL
	client *http.Client
}

// NewHTTP creates an HTTP fetcher. A nil client uses the shared client.
func NewHTTP(base string, client *http.Client) (*HTTP, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("assets: parse base url: %w", err)
	}
	if client == nil {
		client = httpc.Client
	}
	return &HTTP{base: u, client: client}, nil
}

// Fetch implements Fetcher.
func (h *HTTP) Fetch(ctx context.Context, name string) ([]byte, error) {
	ref, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("assets: parse %q: %w", name, err)
	}
	target := h.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assets: get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assets: get %s: status %d", target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Cached wraps a Fetcher and keeps successful results in memory.
type Cached struct {
	next Fetcher

	mu    sync.RWMutex
	items map[string][]byte
}

// NewCached creates a caching fetcher.
func NewCached(next Fetcher) *Cached {
	return &Cached{next: next, items: make(map[string][]byte)}
}

// Fetch implements Fetcher.
func (c *Cached) Fetch(ctx context.Context, name string) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.items[name]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := c.next.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items[name] = data
	c.mu.Unlock()
	return data, nil
}

// Len returns the number of cached assets.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
