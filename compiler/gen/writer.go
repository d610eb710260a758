package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

// Format renders a file and runs goimports over the result.
func (g *Generator) Format(f *File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, NewGenerationError("", f.Name, "render", err)
	}
	out, err := imports.Process(filepath.Join(g.cfg.Target, f.Name), buf.Bytes(), nil)
	if err != nil {
		return nil, NewGenerationError("", f.Name, "format", err)
	}
	return out, nil
}

// WriteAll writes the files to the target directory in parallel.
func (g *Generator) WriteAll(ctx context.Context, files ...*File) error {
	if err := os.MkdirAll(g.cfg.Target, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for _, f := range files {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return g.write(f)
			}
		})
	}
	return eg.Wait()
}

func (g *Generator) write(f *File) error {
	out, err := g.Format(f)
	if err != nil {
		return err
	}
	path := filepath.Join(g.cfg.Target, f.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return nil
}
