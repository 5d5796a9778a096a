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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TimeWtr/pluginrt/log"
)

// PollWatcher is the polling fallback for filesystems where fsnotify
// is unavailable or unreliable (network mounts, some container
// overlays), scheduled via the same robfig/cron "@every" idiom the
// health monitor uses. Each tick snapshots the directory's file names
// and modification times and diffs against the previous snapshot to
// synthesize created/modified/deleted events.
type PollWatcher struct {
	dir           string
	watchCreated  bool
	watchModified bool
	watchDeleted  bool

	cron    *cron.Cron
	events  chan Event
	l       log.Logger

	mu       sync.Mutex
	snapshot map[string]time.Time
}

// PollWatcherConfig mirrors FSWatcherConfig's enable flags plus the
// scan interval (spec §6 "hot_deployment.polling_interval_ms").
type PollWatcherConfig struct {
	Dir           string
	Interval      time.Duration
	WatchCreated  bool
	WatchModified bool
	WatchDeleted  bool
}

// NewPollWatcher starts scanning cfg.Dir on the configured interval.
// The cron "@every" schedule has whole-second resolution: fractions of
// a second are dropped and an interval under one second runs once a
// second.
func NewPollWatcher(cfg PollWatcherConfig, l log.Logger) (*PollWatcher, error) {
	if l == nil {
		l = log.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}

	w := &PollWatcher{
		dir:           cfg.Dir,
		watchCreated:  cfg.WatchCreated,
		watchModified: cfg.WatchModified,
		watchDeleted:  cfg.WatchDeleted,
		events:        make(chan Event, 64),
		l:             l,
		snapshot:      make(map[string]time.Time),
	}

	initial, err := w.scan()
	if err != nil {
		return nil, err
	}
	w.snapshot = initial

	w.cron = cron.New()
	spec := fmt.Sprintf("@every %s", cfg.Interval)
	if _, err := w.cron.AddFunc(spec, w.tick); err != nil {
		return nil, err
	}
	w.cron.Start()
	return w, nil
}

func (w *PollWatcher) Events() <-chan Event { return w.events }

func (w *PollWatcher) Close() error {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	close(w.events)
	return nil
}

func (w *PollWatcher) scan() (map[string]time.Time, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(w.dir, entry.Name())] = info.ModTime()
	}
	return out, nil
}

func (w *PollWatcher) tick() {
	current, err := w.scan()
	if err != nil {
		w.l.Error("hot-deploy poll scan failed", log.ErrorField(err))
		return
	}

	w.mu.Lock()
	previous := w.snapshot
	w.snapshot = current
	w.mu.Unlock()

	for path, mtime := range current {
		prevMtime, existed := previous[path]
		switch {
		case !existed && w.watchCreated:
			w.events <- Event{Kind: Created, Handle: path, Timestamp: time.Now()}
		case existed && !prevMtime.Equal(mtime) && w.watchModified:
			w.events <- Event{Kind: Modified, Handle: path, Timestamp: time.Now()}
		}
	}
	if w.watchDeleted {
		for path := range previous {
			if _, stillExists := current[path]; !stillExists {
				w.events <- Event{Kind: Deleted, Handle: path, Timestamp: time.Now()}
			}
		}
	}
}
