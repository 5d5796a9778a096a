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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Connecting to a live NATS server is out of scope for this package's
// unit tests; the wire envelope's encode/decode round trip and the tag
// registry lookup it depends on are tested directly instead.

func TestWireEvent_RoundTrip(t *testing.T) {
	ev := NewLifecycleEvent("p1", 0, 1)
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	we := wireEvent{Tag: ev.TypeTag(), Plugin: ev.PluginID(), Payload: payload}
	data, err := json.Marshal(we)
	require.NoError(t, err)

	var decoded wireEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, LifecycleTag, decoded.Tag)

	factory, ok := lookupEventType(decoded.Tag)
	require.True(t, ok)
	out := factory()
	require.NoError(t, json.Unmarshal(decoded.Payload, out))
	assert.Equal(t, "p1", out.PluginID())
}

func TestLookupEventType_Unknown(t *testing.T) {
	_, ok := lookupEventType("nonexistent-tag")
	assert.False(t, ok)
}

func TestRegisterEventType(t *testing.T) {
	type customEvent struct{ Base }
	RegisterEventType("custom-test-tag", func() Event { return &customEvent{} })

	factory, ok := lookupEventType("custom-test-tag")
	require.True(t, ok)
	assert.NotNil(t, factory())
}
