// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkEntryValidity(t *testing.T) {
	require.False(t, ChunkEntry{}.IsValid())

	rep := &fakeRepresentation{id: "r1"}
	valid := ChunkEntry{Chunk: &fakeChunk{}, Pos: WithRepresentation(rep, 0)}
	require.True(t, valid.IsValid())

	noChunk := ChunkEntry{Pos: WithRepresentation(rep, 0)}
	require.False(t, noChunk.IsValid())
}

func TestChunkQueueSingleSlotLookahead(t *testing.T) {
	var q chunkQueue
	require.True(t, q.empty())

	rep := &fakeRepresentation{id: "r1"}
	e1 := ChunkEntry{Chunk: &fakeChunk{}, Pos: WithRepresentation(rep, 1)}
	q.push(e1)
	require.False(t, q.empty())

	peeked, ok := q.peek()
	require.True(t, ok)
	require.Equal(t, e1, peeked)
	require.False(t, q.empty(), "peek must not remove the entry")

	popped, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, e1, popped)
	require.True(t, q.empty())

	_, ok = q.pop()
	require.False(t, ok)
}

func TestChunkQueueFlushReleasesEntry(t *testing.T) {
	var q chunkQueue
	rep := &fakeRepresentation{id: "r1"}
	q.push(ChunkEntry{Chunk: &fakeChunk{}, Pos: WithRepresentation(rep, 1)})
	q.flush()
	require.True(t, q.empty())
}
