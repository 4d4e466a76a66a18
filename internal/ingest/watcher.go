package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig controls request-file discovery.
type WatchConfig struct {
	// Roots are the directories to watch, recursively.
	Roots []string
	// InitialScan emits request files already present under the roots.
	// Emission is bounded by the event channel buffer, so start draining
	// promptly.
	InitialScan bool
	// Debounce coalesces rapid write/rename bursts for the same file.
	Debounce time.Duration
}

// StartWatcher watches the roots for request files and emits their paths as
// they appear or change. Directories created under a root are picked up as
// they appear. The returned channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed, no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "err", err)
		return nil, nil, err
	}

	addRoot := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && IsRequestFile(path) {
				select {
				case evCh <- path:
				default:
				}
			}
			return nil
		})
	}
	for _, root := range cfg.Roots {
		if err := addRoot(root); err != nil {
			logger.Error("failed to add watch root", "root", root, "err", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "err", err)
			}
		}()

		// The debounce timer only ever fires into this loop, so pending
		// needs no locking.
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		pending := map[string]struct{}{}

		flush := func() {
			for path := range pending {
				select {
				case evCh <- path:
				default:
				}
				delete(pending, path)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-timerC:
				timerC = nil
				flush()
			case e := <-w.Events:
				if e.Op&fsnotify.Create != 0 {
					if err := watchNewDir(w, e.Name); err != nil {
						logger.Warn("failed to watch new directory", "path", e.Name, "err", err)
					}
				}
				if IsRequestFile(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					pending[e.Name] = struct{}{}
					if cfg.Debounce <= 0 {
						flush()
						continue
					}
					if timer == nil {
						timer = time.NewTimer(cfg.Debounce)
					} else {
						if !timer.Stop() {
							select {
							case <-timer.C:
							default:
							}
						}
						timer.Reset(cfg.Debounce)
					}
					timerC = timer.C
				}
			case err := <-w.Errors:
				logger.Error("watcher error", "err", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// watchNewDir starts watching path when it is a directory that appeared
// after the initial walk. Anything else is ignored.
func watchNewDir(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil
	}
	return w.Add(path)
}
