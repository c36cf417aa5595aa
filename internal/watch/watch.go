// Package watch delivers change notifications for session files under a
// root directory, following new subdirectories as they appear.
package watch

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Handler receives the path of a session file that was created or
// written to.
type Handler func(ctx context.Context, path string)

// Watcher wraps the OS notification mechanism with recursive directory
// coverage. Notification APIs are not recursive, so every directory
// under the root is registered individually, and directories created
// later are picked up from their create events.
type Watcher struct {
	fsw     *fsnotify.Watcher
	root    string
	handler Handler
}

// New builds a watcher over root. Run must be called to start delivery.
func New(root string, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, root: root, handler: handler}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log.Printf("watching %s", w.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("event channel closed")
			}
			w.dispatch(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("error channel closed")
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				log.Printf("cannot watch %s: %v", ev.Name, err)
			}
			// A directory renamed into the root can already hold
			// session files, and files can land before the watch
			// registers. Hand those over now; cursors absorb any
			// double delivery.
			w.dispatchExisting(ctx, ev.Name)
			return
		}
	}

	if filepath.Ext(ev.Name) != ".jsonl" {
		return
	}
	w.handler(ctx, ev.Name)
}

// addRecursive registers dir and every directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

// dispatchExisting reports session files already sitting under dir.
func (w *Watcher) dispatchExisting(ctx context.Context, dir string) {
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".jsonl" {
			w.handler(ctx, path)
		}
		return nil
	})
}
