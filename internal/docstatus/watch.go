package docstatus

import (
	"context"
	"path/filepath"
	"time"

	logx "etapabot/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads the registry whenever its file changes, until ctx is done.
// The parent directory is watched because editors often replace the file
// instead of writing to it.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go r.watchLoop(ctx, watcher)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	// many editors emit several events per save
	debounce := time.NewTimer(0)
	<-debounce.C
	target := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			debounce.Reset(reloadDebounce)

		case <-debounce.C:
			if err := r.Reload(); err != nil {
				logx.Error().Err(err).Str("path", r.path).Msg("registry reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logx.Warn().Err(err).Str("path", r.path).Msg("registry watcher error")
		}
	}
}
