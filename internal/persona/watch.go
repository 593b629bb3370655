package persona

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/infblueocean/watchcrew/internal/logging"
)

// Watcher re-reads an agents file whenever it is written, so a roster
// edited in another tool shows up in the next request cycle.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	apply    func(Roster) error
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher watches path's directory (editors often replace files rather
// than write them in place) and calls apply with every successfully parsed
// version of the file.
func NewWatcher(path string, apply func(Roster) error) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		path:     path,
		debounce: 200 * time.Millisecond,
		apply:    apply,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("agents watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	raw, err := LoadFile(w.path)
	if err != nil {
		logging.Warn("agents file reload failed", "path", w.path, "error", err)
		return
	}
	roster, err := Parse(raw)
	if err != nil {
		logging.Warn("agents file invalid", "path", w.path, "error", err)
		return
	}
	if err := w.apply(roster); err != nil {
		logging.Warn("agents apply failed", "path", w.path, "error", err)
		return
	}
	logging.Info("agents reloaded", "path", w.path, "count", roster.Len())
}
