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

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimeWtr/pluginrt/perr"
)

func TestInProcessBus_PublishSubscribe(t *testing.T) {
	bus := NewInProcessBus(4, nil)
	ch, cancel := bus.Subscribe(LifecycleTag)
	defer cancel()

	ev := NewLifecycleEvent("p1", 0, 1)
	require.NoError(t, bus.Publish(context.Background(), ev))

	select {
	case got := <-ch:
		assert.Equal(t, "p1", got.PluginID())
		assert.Equal(t, LifecycleTag, got.TypeTag())
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestInProcessBus_FiltersByEventType(t *testing.T) {
	bus := NewInProcessBus(4, nil)
	ch, cancel := bus.Subscribe(ConfigurationTag)
	defer cancel()

	require.NoError(t, bus.Publish(context.Background(), NewLifecycleEvent("p1", 0, 1)))

	select {
	case <-ch:
		t.Fatal("did not expect lifecycle event on configuration subscription")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInProcessBus_SubscribeToPlugin(t *testing.T) {
	bus := NewInProcessBus(4, nil)
	ch, cancel := bus.SubscribeToPlugin("p1", LifecycleTag)
	defer cancel()

	require.NoError(t, bus.Publish(context.Background(), NewLifecycleEvent("other", 0, 1)))
	select {
	case <-ch:
		t.Fatal("did not expect event for a different plugin id")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, bus.Publish(context.Background(), NewLifecycleEvent("p1", 0, 1)))
	select {
	case got := <-ch:
		assert.Equal(t, "p1", got.PluginID())
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestInProcessBus_SubscribeTopic(t *testing.T) {
	bus := NewInProcessBus(4, nil)
	ch, cancel := bus.SubscribeTopic("topic-a", LifecycleTag)
	defer cancel()

	require.NoError(t, bus.Publish(context.Background(), NewLifecycleEvent("p1", 0, 1)))
	select {
	case <-ch:
		t.Fatal("a non-topic publish must not reach a topic subscription")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, bus.PublishTopic(context.Background(), "topic-a", NewLifecycleEvent("p1", 0, 1)))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected event delivery on matching topic")
	}
}

func TestInProcessBus_DropsOldestWhenFull(t *testing.T) {
	bus := NewInProcessBus(1, nil)
	ch, cancel := bus.Subscribe(LifecycleTag)
	defer cancel()

	first := NewLifecycleEvent("first", 0, 1)
	second := NewLifecycleEvent("second", 0, 1)
	require.NoError(t, bus.Publish(context.Background(), first))
	require.NoError(t, bus.Publish(context.Background(), second))

	select {
	case got := <-ch:
		assert.Equal(t, "second", got.PluginID(), "oldest event should have been dropped")
	case <-time.After(time.Second):
		t.Fatal("expected the surviving event to be delivered")
	}
}

func TestInProcessBus_CancelClosesChannel(t *testing.T) {
	bus := NewInProcessBus(1, nil)
	ch, cancel := bus.Subscribe(LifecycleTag)
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestInProcessBus_Shutdown(t *testing.T) {
	bus := NewInProcessBus(1, nil)
	ch, _ := bus.Subscribe(LifecycleTag)

	require.NoError(t, bus.Shutdown(context.Background()))
	_, ok := <-ch
	assert.False(t, ok)

	// Shutdown must be idempotent.
	require.NoError(t, bus.Shutdown(context.Background()))
}

func TestInProcessBus_PublishAfterShutdown(t *testing.T) {
	bus := NewInProcessBus(1, nil)
	require.NoError(t, bus.Shutdown(context.Background()))

	err := bus.Publish(context.Background(), NewLifecycleEvent("p1", 0, 1))
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindShutdown))

	err = bus.PublishTopic(context.Background(), "t1", NewLifecycleEvent("p1", 0, 1))
	require.Error(t, err)
	assert.True(t, perr.OfKind(err, perr.KindShutdown))
}

func TestInProcessBus_TransportType(t *testing.T) {
	assert.Equal(t, "inprocess", NewInProcessBus(1, nil).TransportType())
}
