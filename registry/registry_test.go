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

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimeWtr/pluginrt/eventbus"
	"github.com/TimeWtr/pluginrt/extension"
	"github.com/TimeWtr/pluginrt/perr"
	"github.com/TimeWtr/pluginrt/plugin"
)

type fakePlugin struct {
	id          string
	initErr     error
	startErr    error
	stopErr     error
	initBlock   chan struct{}
	initCalls   int
	startCalls  int
	stopCalls   int
	uninstalled bool
}

func (f *fakePlugin) Metadata() plugin.Metadata { return plugin.Metadata{ID: f.id, Version: "1.0.0"} }

func (f *fakePlugin) Initialize(ctx context.Context) error {
	f.initCalls++
	if f.initBlock != nil {
		select {
		case <-f.initBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.initErr
}

func (f *fakePlugin) Start(ctx context.Context) error {
	f.startCalls++
	return f.startErr
}

func (f *fakePlugin) Stop(ctx context.Context) error {
	f.stopCalls++
	return f.stopErr
}

func (f *fakePlugin) Uninstall(ctx context.Context) error {
	f.uninstalled = true
	return nil
}

func newTestRegistry() (*Registry, eventbus.Bus) {
	bus := eventbus.NewInProcessBus(16, nil)
	return New(bus, extension.New(nil), nil), bus
}

func TestRegister_Success(t *testing.T) {
	r, bus := newTestRegistry()
	events, cancel := bus.Subscribe(eventbus.LifecycleTag)
	defer cancel()

	p := &fakePlugin{id: "p1"}
	require.NoError(t, r.Register(context.Background(), p, "local"))

	desc, err := r.Descriptor("p1")
	require.NoError(t, err)
	assert.Equal(t, plugin.Initialized, desc.State)

	select {
	case ev := <-events:
		le := ev.(eventbus.LifecycleEvent)
		assert.Equal(t, plugin.Installed, le.PreviousState)
		assert.Equal(t, plugin.Initialized, le.NewState)
	case <-time.After(time.Second):
		t.Fatal("expected lifecycle event")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r, _ := newTestRegistry()
	p := &fakePlugin{id: "p1"}
	require.NoError(t, r.Register(context.Background(), p, ""))

	err := r.Register(context.Background(), &fakePlugin{id: "p1"}, "")
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindDuplicate))
}

func TestRegister_InitializeFailure_TransitionsToFailed(t *testing.T) {
	r, _ := newTestRegistry()
	p := &fakePlugin{id: "p1", initErr: errors.New("boom")}

	err := r.Register(context.Background(), p, "")
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindHookFailure))

	desc, derr := r.Descriptor("p1")
	require.NoError(t, derr)
	assert.Equal(t, plugin.Failed, desc.State)
}

func TestStartStop_RoundTrip(t *testing.T) {
	r, _ := newTestRegistry()
	p := &fakePlugin{id: "p1"}
	require.NoError(t, r.Register(context.Background(), p, ""))
	require.NoError(t, r.Start(context.Background(), "p1"))

	desc, _ := r.Descriptor("p1")
	assert.Equal(t, plugin.Started, desc.State)

	require.NoError(t, r.Stop(context.Background(), "p1"))
	desc, _ = r.Descriptor("p1")
	assert.Equal(t, plugin.Stopped, desc.State)

	require.NoError(t, r.Start(context.Background(), "p1"))
	desc, _ = r.Descriptor("p1")
	assert.Equal(t, plugin.Started, desc.State)
}

func TestStart_IdempotentWhenAlreadyStarted(t *testing.T) {
	r, _ := newTestRegistry()
	p := &fakePlugin{id: "p1"}
	require.NoError(t, r.Register(context.Background(), p, ""))
	require.NoError(t, r.Start(context.Background(), "p1"))
	require.NoError(t, r.Start(context.Background(), "p1"))

	assert.Equal(t, 1, p.startCalls, "second start must be a no-op")
}

func TestStop_NoOpWhenNotStarted(t *testing.T) {
	r, _ := newTestRegistry()
	p := &fakePlugin{id: "p1"}
	require.NoError(t, r.Register(context.Background(), p, ""))
	require.NoError(t, r.Stop(context.Background(), "p1"))

	assert.Equal(t, 0, p.stopCalls)
}

func TestFailedToStarted_Recovery(t *testing.T) {
	r, _ := newTestRegistry()
	p := &fakePlugin{id: "p1", startErr: errors.New("first failure")}
	require.NoError(t, r.Register(context.Background(), p, ""))

	err := r.Start(context.Background(), "p1")
	require.Error(t, err)
	desc, _ := r.Descriptor("p1")
	assert.Equal(t, plugin.Failed, desc.State)

	p.startErr = nil
	require.NoError(t, r.Start(context.Background(), "p1"))
	desc, _ = r.Descriptor("p1")
	assert.Equal(t, plugin.Started, desc.State)
}

func TestUnregister_WithdrawsExtensions(t *testing.T) {
	bus := eventbus.NewInProcessBus(16, nil)
	ext := extension.New(nil)
	r := New(bus, ext, nil)
	require.NoError(t, ext.RegisterExtensionPoint("greet", nil, true))
	require.NoError(t, ext.RegisterExtension("greet", "p1", 1, 10))

	p := &fakePlugin{id: "p1"}
	require.NoError(t, r.Register(context.Background(), p, ""))
	require.NoError(t, r.Unregister(context.Background(), "p1"))

	_, err := r.Descriptor("p1")
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindNotFound))
	assert.True(t, p.uninstalled)
	assert.Empty(t, ext.GetExtensions("greet"))
}

func TestSetConfiguration_EmitsConfigurationEvent(t *testing.T) {
	r, bus := newTestRegistry()
	p := &fakePlugin{id: "p1"}
	require.NoError(t, r.Register(context.Background(), p, ""))

	events, cancel := bus.Subscribe(eventbus.ConfigurationTag)
	defer cancel()

	require.NoError(t, r.SetConfiguration(context.Background(), "p1", map[string]any{"k": "v"}))

	select {
	case ev := <-events:
		ce := ev.(eventbus.ConfigurationEvent)
		assert.Equal(t, "v", ce.NewConfig["k"])
	case <-time.After(time.Second):
		t.Fatal("expected configuration event")
	}
}

func TestHookTimeout(t *testing.T) {
	r, _ := newTestRegistry()
	r.hookTimeout = 20 * time.Millisecond

	p := &fakePlugin{id: "p1", initBlock: make(chan struct{})}
	defer close(p.initBlock)

	err := r.Register(context.Background(), p, "")
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindTimeout))
}

func TestByState(t *testing.T) {
	r, _ := newTestRegistry()
	require.NoError(t, r.Register(context.Background(), &fakePlugin{id: "p1"}, ""))
	require.NoError(t, r.Register(context.Background(), &fakePlugin{id: "p2"}, ""))
	require.NoError(t, r.Start(context.Background(), "p1"))

	started := r.ByState(plugin.Started)
	require.Len(t, started, 1)
	assert.Equal(t, "p1", started[0].Metadata.ID)

	initialized := r.ByState(plugin.Initialized)
	require.Len(t, initialized, 1)
	assert.Equal(t, "p2", initialized[0].Metadata.ID)
}
