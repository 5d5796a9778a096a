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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TimeWtr/pluginrt/log"
	"github.com/TimeWtr/pluginrt/utils/atomicx"
)

const (
	stoppedState = iota
	runningState
)

// Provider watches a configuration file and pushes a fresh Config
// every time it changes.
type Provider interface {
	Watch() (<-chan Config, error)
	Close()
}

// FileProvider is adapted directly from the teacher's FileProvider
// (weight/provider.go): it watches the file's parent directory rather
// than the file itself, since most editors and deploy tools replace a
// file by renaming a temp file over it rather than writing it
// in-place, and debounces rapid successive writes into a single
// reload.
type FileProvider struct {
	parseType ParseType
	filepath  string
	dir       string

	watcher *fsnotify.Watcher
	ch      chan Config
	closeCh chan struct{}
	state   *atomicx.Int32
	l       log.Logger

	lock             sync.Mutex
	debounceLock     sync.Mutex
	debounceTimer    *time.Timer
	debounceDuration time.Duration
	debouncePending  *atomicx.Bool
	wg               sync.WaitGroup
}

// NewFileProvider builds a FileProvider for path. parseType is
// inferred from the file extension if left empty.
func NewFileProvider(path, parseType string, l log.Logger) (*FileProvider, error) {
	if l == nil {
		l = log.Nop()
	}

	pt := ParseType(parseType)
	if pt == "" {
		pt = ParseTypeFromExt(filepath.Ext(path))
	}
	if !pt.valid() {
		return nil, fmt.Errorf("config: invalid parse type %q", parseType)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	const debounceTimeout = 500 * time.Millisecond
	return &FileProvider{
		parseType:        pt,
		filepath:         path,
		dir:              filepath.Dir(path),
		l:                l,
		state:            atomicx.NewInt32(stoppedState),
		debounceDuration: debounceTimeout,
		debouncePending:  atomicx.NewBool(),
		closeCh:          make(chan struct{}),
	}, nil
}

func (f *FileProvider) Watch() (<-chan Config, error) {
	if !f.state.CompareAndSwap(stoppedState, runningState) {
		return nil, errors.New("config: provider already running")
	}

	initial, err := f.reload(false)
	if err != nil {
		return nil, err
	}

	f.ch = make(chan Config, 16)
	f.ch <- initial

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	f.watcher = watcher

	if err := f.watcher.Add(f.dir); err != nil {
		_ = f.watcher.Close()
		return nil, err
	}

	f.l.Info("watching configuration file",
		log.StringField("path", f.filepath),
		log.StringField("format", f.parseType.String()))

	f.wg.Add(1)
	go f.watchLoop()

	return f.ch, nil
}

func (f *FileProvider) watchLoop() {
	defer func() {
		f.wg.Done()
		if f.watcher != nil {
			if err := f.watcher.Close(); err != nil {
				f.l.Error("failed to close config file watcher", log.ErrorField(err))
			}
		}
		f.debounceLock.Lock()
		if f.debounceTimer != nil {
			if !f.debounceTimer.Stop() {
				select {
				case <-f.debounceTimer.C:
				default:
				}
			}
		}
		f.debounceLock.Unlock()

		if r := recover(); r != nil {
			f.l.Error("config provider panic", log.Field{Key: "cause", Val: r})
		}
	}()

	for {
		select {
		case e, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != filepath.Clean(f.filepath) {
				continue
			}
			f.handleEvent(e)
		case <-f.closeCh:
			return
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.l.Error("config file watcher error", log.ErrorField(err))
		}
	}
}

func (f *FileProvider) handleEvent(e fsnotify.Event) {
	switch {
	case e.Op&fsnotify.Write != 0, e.Op&fsnotify.Create != 0:
		f.scheduleReload()
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		f.l.Warn("configuration file removed or renamed", log.StringField("path", f.filepath))
	}
}

func (f *FileProvider) scheduleReload() {
	f.debounceLock.Lock()
	defer f.debounceLock.Unlock()

	if f.debounceTimer != nil {
		if !f.debounceTimer.Stop() {
			select {
			case <-f.debounceTimer.C:
			default:
			}
		}
	}

	if f.state.Load() == stoppedState {
		return
	}

	f.debounceTimer = time.AfterFunc(f.debounceDuration, func() {
		f.debounceLock.Lock()
		defer f.debounceLock.Unlock()

		f.debouncePending.Store(false)
		cfg, err := f.reload(true)
		if err != nil {
			f.l.Error("failed to reload configuration", log.ErrorField(err), log.StringField("path", f.filepath))
			return
		}

		select {
		case f.ch <- cfg:
		default:
			f.l.Warn("configuration channel full, dropping reload")
		}
	})
	f.debouncePending.Store(true)
}

func (f *FileProvider) reload(isReload bool) (Config, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.filepath)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	switch f.parseType {
	case ParseTypeYAML:
		cfg, err = parseYaml(data)
	case ParseTypeJSON:
		cfg, err = parseJSON(data)
	case ParseTypeTOML:
		cfg, err = parseToml(data)
	}
	if err != nil {
		return Config{}, err
	}

	if isReload {
		f.l.Info("configuration reloaded", log.StringField("path", f.filepath))
	}
	return cfg, nil
}

func (f *FileProvider) Close() {
	if !f.state.CompareAndSwap(runningState, stoppedState) {
		return
	}

	close(f.closeCh)
	f.wg.Wait()

	f.debounceLock.Lock()
	f.debouncePending.Store(false)
	if f.debounceTimer != nil {
		if !f.debounceTimer.Stop() {
			select {
			case <-f.debounceTimer.C:
			default:
			}
		}
	}
	f.debounceLock.Unlock()

	close(f.ch)
}
