// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package dashrep

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalInitSegment encodes a bare-bones fmp4 init segment declaring
// timescale on its single track, mirroring asset.go's readInit/Encode round
// trip used to rehydrate stored init segments.
func buildMinimalInitSegment(t *testing.T, timescale uint32) []byte {
	t.Helper()
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "vide", "und")
	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))
	return buf.Bytes()
}

func TestSegmentToChunkFetchesBody(t *testing.T) {
	const body = "fake-media-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	connMgr := NewHTTPConnectionManager(srv.Client())
	seg := &Segment{url: srv.URL + "/hi/1.m4s"}

	chunk, ok := seg.ToChunk(nil, connMgr, 1, nil)
	require.True(t, ok)

	got, err := io.ReadAll(asReader(chunk))
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestSegmentToChunkNoConnectionManagerFails(t *testing.T) {
	seg := &Segment{url: "https://example.com/x.m4s"}
	_, ok := seg.ToChunk(nil, nil, 1, nil)
	assert.False(t, ok)
}

func TestInitSegmentToChunkRefinesTimescaleWithoutDrainingChunk(t *testing.T) {
	initBytes := buildMinimalInitSegment(t, 48000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(initBytes)
	}))
	defer srv.Close()

	mf := newTestManifest(vodManifestWithTimeline())
	reps, err := mf.Representations("1", nil)
	require.NoError(t, err)
	rep := reps[0]
	rep.connMgr = NewHTTPConnectionManager(srv.Client())

	before := rep.timescale
	init := &initSegment{rep: rep, url: srv.URL + "/init.mp4"}

	chunk, ok := init.ToChunk(nil, rep.connMgr, 0, nil)
	require.True(t, ok)
	assert.Equal(t, uint64(48000), rep.timescale)
	assert.NotEqual(t, before, rep.timescale)

	// The prober downstream must still see the full, unconsumed byte stream.
	peeked, err := io.ReadAll(asReader(chunk))
	require.NoError(t, err)
	assert.Equal(t, initBytes, peeked)
}

func TestDecodeInitTimescaleRejectsGarbage(t *testing.T) {
	_, ok := decodeInitTimescale([]byte("not an mp4 file"))
	assert.False(t, ok)
}

func TestDecodeInitTimescaleRejectsEmpty(t *testing.T) {
	_, ok := decodeInitTimescale(nil)
	assert.False(t, ok)
}

// asReader adapts a tracker.SegmentChunk's Peek-based API to an io.Reader for
// test convenience.
func asReader(chunk interface{ Peek([]byte) (int, error) }) io.Reader {
	return &peekReader{chunk: chunk}
}

type peekReader struct {
	chunk interface{ Peek([]byte) (int, error) }
}

func (p *peekReader) Read(buf []byte) (int, error) {
	return p.chunk.Peek(buf)
}
