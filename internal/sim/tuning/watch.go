package tuning

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay is how long the file has to stay quiet before it is reloaded.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the tuning file whenever it changes on disk and hands every
// successfully parsed value to onChange. Bursts of events are coalesced into
// one reload. Invalid or empty files are logged and ignored. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, logger *log.Logger, onChange func(Tuning)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			reload = time.After(reloadDelay)
		case <-reload:
			reload = nil
			t, err := Load(path)
			if err != nil {
				logger.Printf("tuning reload: %v", err)
				continue
			}
			onChange(t)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Printf("tuning watch: %v", err)
		}
	}
}
