package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/live2d"
)

// openModel loads the settings at path, a local file or an http(s) URL,
// with a caching fetcher rooted next to it.
func openModel(ctx context.Context, path string, opts live2d.Options) (*live2d.Model, error) {
	if path == "" {
		return nil, fmt.Errorf("no model given; pass --model or set CUBISM_MODEL_PATH")
	}

	name := path
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		f, err := assets.NewHTTP(path, nil)
		if err != nil {
			return nil, err
		}
		opts.Fetcher = assets.NewCached(f)
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("model settings: %w", err)
		}
		opts.Fetcher = assets.NewCached(assets.NewFS(os.DirFS(filepath.Dir(path))))
		name = filepath.Base(path)
	}
	return live2d.Load(ctx, name, opts)
}
