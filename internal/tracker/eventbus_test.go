// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversInRegistrationOrder(t *testing.T) {
	var bus eventBus
	var order []string

	bus.register(ListenerFunc(func(e *Event) { order = append(order, "a") }))
	bus.register(ListenerFunc(func(e *Event) { order = append(order, "b") }))
	bus.register(ListenerFunc(func(e *Event) { order = append(order, "c") }))

	bus.notify(Event{Kind: EventSegmentGap})

	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestEventBusNotifyWithNoListenersIsANoOp(t *testing.T) {
	var bus eventBus
	require.NotPanics(t, func() { bus.notify(Event{Kind: EventSegmentGap}) })
}

func TestEventBusIgnoresNilListenerRegistration(t *testing.T) {
	var bus eventBus
	bus.register(nil)
	require.Empty(t, bus.listeners)
}

// TestEventBusFanOutPreservesEventPayloads captures every Event broadcast
// across a short playback sequence and diffs the captured slice against the
// expected one structurally, the way a listener that logs or forwards events
// downstream would need them to arrive intact.
func TestEventBusFanOutPreservesEventPayloads(t *testing.T) {
	var bus eventBus
	var got []Event
	bus.register(ListenerFunc(func(e *Event) { got = append(got, *e) }))

	emitted := []Event{
		newSegmentChange("video", 4, 12*time.Second, 2*time.Second, 12*time.Second),
		newBufferingLevelChange("video", time.Second, 10*time.Second, 4*time.Second, 6*time.Second),
		newSegmentChange("video", 5, 14*time.Second, 2*time.Second, 14*time.Second),
		newSegmentGap(),
	}
	for _, e := range emitted {
		bus.notify(e)
	}

	if diff := cmp.Diff(emitted, got); diff != "" {
		t.Errorf("listener received unexpected events (-want +got):\n%s", diff)
	}
}
