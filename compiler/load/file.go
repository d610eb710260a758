package load

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/featgen/schema"
)

// ReadFile reads and decodes a model file. The format is taken from the
// file extension.
func ReadFile(path string) (*Model, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadFile reads a model file and builds it.
func LoadFile(path string) (*schema.Model, error) {
	m, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	sm, err := m.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sm, nil
}

// File is a decoded model file.
type File struct {
	Path  string
	Model *Model
}

// ReadFiles reads the given model files concurrently. Every file is also
// built once to validate it. Results keep the order of paths.
func ReadFiles(ctx context.Context, paths ...string) ([]*File, error) {
	files := make([]*File, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := m.Build(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			files[i] = &File{Path: path, Model: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// ReadDir reads every .yaml, .yml and .json model file in dir.
func ReadDir(ctx context.Context, dir string) ([]*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatOf(e.Name()); err == nil {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return ReadFiles(ctx, paths...)
}
