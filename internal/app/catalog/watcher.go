package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// Watcher reports changes to the playable files of a directory.
// Bursts of filesystem events are coalesced into a single onChange call.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
}

// NewWatcher creates a watcher for dir. onChange is called from the Run goroutine.
func NewWatcher(dir string, debounce time.Duration, onChange func()) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
	}
}

// Run watches the directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", w.dir)
	}

	zlog.Info().Msgf("catalog: watching %s", w.dir)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			zlog.Debug().Msgf("catalog: change detected: op=%s name=%s", event.Op, event.Name)
			timer.Reset(w.debounce)

		case <-timer.C:
			w.onChange()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("catalog: watcher error")
		}
	}
}

// relevant reports whether event can change the catalog contents.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return IsAllowed(filepath.Base(event.Name))
}
