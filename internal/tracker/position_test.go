// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvalidPosition(t *testing.T) {
	p := InvalidPosition()
	require.False(t, p.IsValid())
	require.False(t, p.InInitPhase())
	require.False(t, p.InIndexPhase())
	require.False(t, p.InMediaPhase())
}

func TestPositionIncrementNoOpWhenInvalid(t *testing.T) {
	p := InvalidPosition()
	require.Equal(t, p, p.Increment())
}

func TestPositionPhaseTransitions(t *testing.T) {
	rep := &fakeRepresentation{id: "r1"}
	p := WithRepresentation(rep, 10)
	require.True(t, p.IsValid())
	require.True(t, p.InInitPhase())

	p = p.Increment()
	require.True(t, p.InIndexPhase())
	require.Equal(t, uint64(10), p.Number)

	p = p.Increment()
	require.True(t, p.InMediaPhase())
	require.Equal(t, uint64(10), p.Number)

	p = p.Increment()
	require.True(t, p.InMediaPhase())
	require.Equal(t, uint64(11), p.Number, "media phase increment advances the segment number and stays in media phase")
}

func TestSameRepresentation(t *testing.T) {
	r1 := &fakeRepresentation{id: "r1"}
	r2 := &fakeRepresentation{id: "r2"}
	a := WithRepresentation(r1, 1)
	b := WithRepresentation(r1, 2)
	c := WithRepresentation(r2, 1)
	require.True(t, a.SameRepresentation(b))
	require.False(t, a.SameRepresentation(c))
	require.True(t, InvalidPosition().SameRepresentation(InvalidPosition()))
}
