package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for a burst of file events to
// settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the catalog of dir whenever a model or questionnaire file
// changes and passes every successfully loaded catalog to onChange. A
// reload that fails is logged and the previous catalog stays in use. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, onChange func(*Catalog)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", dir, err)
	}
	qdir := filepath.Join(dir, QuestionsDir)
	if _, err := os.Stat(qdir); err == nil {
		if err := w.Add(qdir); err != nil {
			return fmt.Errorf("catalog: watch %s: %w", qdir, err)
		}
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ev.Name == qdir && ev.Has(fsnotify.Create) {
				if err := w.Add(qdir); err != nil {
					logger.Warn("failed to watch questionnaires", "dir", qdir, "err", err)
				}
			}
			logger.Debug("model directory changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		case <-timer.C:
			c, err := LoadDir(ctx, dir)
			switch {
			case errors.Is(err, context.Canceled):
				return nil
			case err != nil:
				logger.Error("catalog reload failed", "dir", dir, "err", err)
				continue
			}
			logger.Info("catalog reloaded", "dir", dir, "tasks", c.Len())
			onChange(c)
		}
	}
}
