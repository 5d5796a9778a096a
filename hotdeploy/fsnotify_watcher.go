// Copyright 2025 TimeWtr
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hotdeploy

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TimeWtr/pluginrt/log"
)

// FSWatcher watches a directory with fsnotify and debounces rapid
// successive writes to the same path into a single Modified event; a
// write that arrives while a Created event for the same path is still
// pending is folded into that Created event.
// Grounded directly on the teacher's FileProvider (weight/provider.go):
// same watch-the-directory-not-the-file trick, same per-path debounce
// timer under a dedicated lock, generalized from a single tracked file
// to every artifact in the directory and from a Config-shaped channel
// to the watcher contract's {created, modified, deleted} event kinds.
type FSWatcher struct {
	dir              string
	watchCreated     bool
	watchModified    bool
	watchDeleted     bool
	debounceDuration time.Duration

	watcher *fsnotify.Watcher
	events  chan Event
	closeCh chan struct{}
	closeOnce sync.Once
	wg      sync.WaitGroup
	l       log.Logger

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	debounceKinds  map[string]EventKind

	// mu serializes emit() against the events-channel close in Close,
	// since debounce timers fire on their own goroutines after the
	// watch loop has already exited.
	mu     sync.RWMutex
	closed bool
}

// FSWatcherConfig controls which event kinds are enabled, mirroring
// spec §6's "Enable flags per event kind are configuration."
type FSWatcherConfig struct {
	Dir              string
	WatchCreated     bool
	WatchModified    bool
	WatchDeleted     bool
	DebounceDuration time.Duration
}

// NewFSWatcher starts watching cfg.Dir immediately.
func NewFSWatcher(cfg FSWatcherConfig, l log.Logger) (*FSWatcher, error) {
	if l == nil {
		l = log.Nop()
	}
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	fw := &FSWatcher{
		dir:              cfg.Dir,
		watchCreated:     cfg.WatchCreated,
		watchModified:    cfg.WatchModified,
		watchDeleted:     cfg.WatchDeleted,
		debounceDuration: cfg.DebounceDuration,
		watcher:          w,
		events:           make(chan Event, 64),
		closeCh:          make(chan struct{}),
		l:                l,
		debounceTimers:   make(map[string]*time.Timer),
		debounceKinds:    make(map[string]EventKind),
	}

	fw.wg.Add(1)
	go fw.loop()
	return fw, nil
}

func (w *FSWatcher) Events() <-chan Event { return w.events }

func (w *FSWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.closeCh)
	})
	w.wg.Wait()

	w.debounceMu.Lock()
	for _, t := range w.debounceTimers {
		t.Stop()
	}
	w.debounceMu.Unlock()

	w.mu.Lock()
	w.closed = true
	close(w.events)
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *FSWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(e)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.l.Error("hot-deploy watcher error", log.ErrorField(err))
		case <-w.closeCh:
			return
		}
	}
}

func (w *FSWatcher) handle(e fsnotify.Event) {
	switch {
	case e.Op&(fsnotify.Create) != 0:
		if w.watchCreated {
			w.debounce(e.Name, Created)
		}
	case e.Op&(fsnotify.Write) != 0:
		if w.watchModified {
			w.debounce(e.Name, Modified)
		}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if w.watchDeleted {
			w.emit(Event{Kind: Deleted, Handle: e.Name, Timestamp: time.Now()})
		}
	}
}

func (w *FSWatcher) debounce(path string, kind EventKind) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		if t.Stop() && w.debounceKinds[path] == Created {
			kind = Created
		}
	}
	w.debounceKinds[path] = kind
	w.debounceTimers[path] = time.AfterFunc(w.debounceDuration, func() {
		w.emit(Event{Kind: kind, Handle: path, Timestamp: time.Now()})
	})
}

func (w *FSWatcher) emit(ev Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	case <-w.closeCh:
	}
}
