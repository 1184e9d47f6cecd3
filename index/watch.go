package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay gives writers a moment to finish before the payload is read.
const settleDelay = 100 * time.Millisecond

// WatchPayload reloads the payload at path every time it changes and hands
// the records to onLoad. Decoding failures are logged and the previous
// record set stays in place. WatchPayload blocks until ctx is cancelled.
func WatchPayload(ctx context.Context, path string, onLoad func([]PageRecord), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating payload watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warn("closing payload watcher", "error", err)
		}
	}()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watching payload %s: %w", path, err)
	}
	logger.Info("watching search index payload", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				// Atomic replace: the watched inode is gone, re-arm on the new file.
				time.Sleep(2 * settleDelay)
				if _, err := os.Stat(path); os.IsNotExist(err) {
					logger.Warn("payload removed and not replaced", "path", path)
					continue
				}
				if err := watcher.Add(path); err != nil {
					logger.Warn("re-adding payload to watcher", "path", path, "error", err)
				}
			} else {
				time.Sleep(settleDelay)
			}

			records, err := LoadFile(path)
			if err != nil {
				logger.Error("reloading search index payload", "path", path, "error", err)
				continue
			}
			logger.Info("search index payload changed", "path", path, "op", event.Op.String(), "records", len(records))
			onLoad(records)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("payload watcher error", "error", err)
		}
	}
}
