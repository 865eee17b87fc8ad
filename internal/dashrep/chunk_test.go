// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package dashrep

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dash-segtrack/segtrack/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPConnectionManagerFetchCapturesContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("segment-bytes"))
	}))
	defer srv.Close()

	mgr := NewHTTPConnectionManager(srv.Client())
	chunk, err := mgr.Fetch(srv.URL + "/1.m4s")
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", chunk.GetContentType())

	got, err := io.ReadAll(chunkReader{chunk})
	require.NoError(t, err)
	assert.Equal(t, "segment-bytes", string(got))
}

func TestHTTPConnectionManagerFetchErrorsOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	mgr := NewHTTPConnectionManager(srv.Client())
	_, err := mgr.Fetch(srv.URL + "/missing.m4s")
	assert.Error(t, err)
}

func TestHTTPChunkNeverReportsDiscontinuity(t *testing.T) {
	c := &HTTPChunk{data: []byte("x")}
	disc, seq := c.Discontinuity()
	assert.False(t, disc)
	assert.Equal(t, uint64(0), seq)
}

func TestHTTPChunkStreamFormatRoundTrips(t *testing.T) {
	c := &HTTPChunk{}
	assert.Equal(t, tracker.FormatUnknown, c.GetStreamFormat())
	c.SetStreamFormat(tracker.FormatMP4)
	assert.Equal(t, tracker.FormatMP4, c.GetStreamFormat())
}

func TestHTTPChunkPeekAdvancesAndReturnsEOF(t *testing.T) {
	c := &HTTPChunk{data: []byte("abcdef")}
	buf := make([]byte, 4)
	n, err := c.Peek(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcd", string(buf[:n]))

	n, err = c.Peek(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ef", string(buf[:n]))

	_, err = c.Peek(buf)
	assert.Equal(t, io.EOF, err)
}

type chunkReader struct {
	chunk tracker.SegmentChunk
}

func (r chunkReader) Read(p []byte) (int, error) { return r.chunk.Peek(p) }
