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

package manager

import (
	"context"

	"github.com/TimeWtr/pluginrt/hotdeploy"
	"github.com/TimeWtr/pluginrt/log"
)

// newWatcher builds the fsnotify-backed watcher configured by
// cfg.HotDeployment. No fallback is applied when WatchDir is empty: the
// empty path is handed to NewFSWatcher unchanged.
func (f *Facade) newWatcher() (hotdeploy.Watcher, error) {
	return hotdeploy.NewFSWatcher(hotdeploy.FSWatcherConfig{
		Dir:           f.cfg.HotDeployment.WatchDir,
		WatchCreated:  f.cfg.HotDeployment.WatchForNew,
		WatchModified: f.cfg.HotDeployment.WatchForUpdates,
		WatchDeleted:  f.cfg.HotDeployment.WatchForDeletions,
	}, f.l)
}

// watchLoop implements the watcher semantics of spec §6: on created,
// install then (if configured) start; on modified, locate the current
// plugin id by handle, uninstall then install then (if configured)
// start; on deleted, uninstall.
func (f *Facade) watchLoop() {
	defer close(f.watcherDone)

	for ev := range f.watcher.Events() {
		ctx := context.Background()
		switch ev.Kind {
		case hotdeploy.Created:
			f.onCreated(ctx, ev.Handle)
		case hotdeploy.Modified:
			f.onModified(ctx, ev.Handle)
		case hotdeploy.Deleted:
			f.onDeleted(ctx, ev.Handle)
		}
	}
}

func (f *Facade) onCreated(ctx context.Context, handle hotdeploy.Handle) {
	p, err := f.loader.Load(ctx, handle)
	if err != nil {
		f.l.Error("hot-deploy load failed", log.StringField("handle", handle), log.ErrorField(err))
		return
	}

	id := p.Metadata().ID
	if err := f.Install(ctx, p, handle); err != nil {
		f.l.Error("hot-deploy install failed", log.StringField("handle", handle), log.ErrorField(err))
		return
	}

	f.mu.Lock()
	f.handleToID[handle] = id
	f.mu.Unlock()

	if f.cfg.AutoStartPlugins {
		if err := f.Start(ctx, id); err != nil {
			f.l.Error("hot-deploy start failed", log.StringField("id", id), log.ErrorField(err))
		}
	}
}

func (f *Facade) onModified(ctx context.Context, handle hotdeploy.Handle) {
	if !f.cfg.HotDeployment.AutoReload {
		return
	}

	f.mu.Lock()
	id, ok := f.handleToID[handle]
	f.mu.Unlock()

	if ok {
		if err := f.Uninstall(ctx, id); err != nil {
			f.l.Error("hot-deploy uninstall-on-modify failed", log.StringField("id", id), log.ErrorField(err))
			return
		}
		f.mu.Lock()
		delete(f.handleToID, handle)
		f.mu.Unlock()
	}

	f.onCreated(ctx, handle)
}

func (f *Facade) onDeleted(ctx context.Context, handle hotdeploy.Handle) {
	f.mu.Lock()
	id, ok := f.handleToID[handle]
	delete(f.handleToID, handle)
	f.mu.Unlock()

	if !ok {
		return
	}
	if err := f.Uninstall(ctx, id); err != nil {
		f.l.Error("hot-deploy uninstall-on-delete failed", log.StringField("id", id), log.ErrorField(err))
	}
}
