package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher reloads a batch file whenever it changes on disk, handing the
// freshly parsed Batch to the caller's OnReload callback.
//
// Grounded on cmd/dtn-tool/exchange.go's fsnotify.Watcher usage, adapted from
// watching a directory of bundle files to watching a single batch file.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	OnReload func(Batch)

	stop chan struct{}
}

// NewWatcher starts watching path's containing directory (fsnotify does not
// reliably fire Write events on the file itself across editors that
// rename-and-replace) and returns a Watcher the caller must Close when done.
func NewWatcher(path string, onReload func(Batch)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fw,
		OnReload: onReload,
		stop:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !(event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				continue
			}

			batch, err := Load(w.path)
			if err != nil {
				log.WithFields(log.Fields{"path": w.path, "error": err}).Warn("config: reload failed, keeping previous batch")
				continue
			}
			if w.OnReload != nil {
				w.OnReload(batch)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithFields(log.Fields{"error": err}).Warn("config: watcher reported an error")

		case <-w.stop:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}
