package server

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors vhost docroots for script and stylesheet changes and
// triggers a script-cache invalidation (spec.md §4.10 "hot reload" via
// fsnotify, grounded on the teacher's server/watcher.go debounce shape).
type Watcher struct {
	watcher *fsnotify.Watcher
	server  *Server
	stdout  io.Writer
	stderr  io.Writer

	mu         sync.Mutex
	lastChange time.Time
	changeSeq  uint64
}

// NewWatcher creates a file watcher rooted at every configured vhost
// docroot.
func NewWatcher(s *Server, stdout, stderr io.Writer) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{watcher: fsWatcher, server: s, stdout: stdout, stderr: stderr}
	return w, nil
}

// addTree registers root and every subdirectory with fsnotify, which does
// not watch recursively on its own.
func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || !info.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// Start adds every vhost docroot to the watcher and starts the watch loop
// in its own goroutine, then returns at once; the loop runs until ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for _, vh := range w.server.config.Vhosts {
		if err := w.addTree(vh.DocRoot); err != nil {
			io.WriteString(w.stderr, "watcher: "+err.Error()+"\n")
		}
	}
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	debounce := 200 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isScriptOrStylesheet(ev.Name) {
				continue
			}
			w.mu.Lock()
			now := time.Now()
			if now.Sub(w.lastChange) < debounce {
				w.mu.Unlock()
				continue
			}
			w.lastChange = now
			w.changeSeq++
			w.mu.Unlock()
			w.server.ReloadScripts()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			io.WriteString(w.stderr, "watcher: "+err.Error()+"\n")
		}
	}
}

func isScriptOrStylesheet(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".xml" || ext == ".xsl" || ext == ".xslt"
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.watcher.Close() }
