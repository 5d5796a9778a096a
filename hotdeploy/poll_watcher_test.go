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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollWatcher_DetectsCreateModifyDelete(t *testing.T) {
	dir := t.TempDir()

	w, err := NewPollWatcher(PollWatcherConfig{
		Dir: dir, Interval: 30 * time.Millisecond,
		WatchCreated: true, WatchModified: true, WatchDeleted: true,
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	file := filepath.Join(dir, "plugin.jar")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))

	requireEventKind(t, w, Created, file)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte("v2 longer content"), 0o644))
	requireEventKind(t, w, Modified, file)

	require.NoError(t, os.Remove(file))
	requireEventKind(t, w, Deleted, file)
}

func requireEventKind(t *testing.T, w *PollWatcher, kind EventKind, handle string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Kind == kind && ev.Handle == handle {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event on %s", kind, handle)
		}
	}
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "deleted", Deleted.String())
}
