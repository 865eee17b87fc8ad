// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package dashrep

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// HTTPConnectionManager implements tracker.ConnectionManager by downloading
// the whole segment body into memory, the same client.Do+io.Copy pattern
// dashfetcher uses to pull segments to disk.
type HTTPConnectionManager struct {
	Client *http.Client
}

// NewHTTPConnectionManager constructs a connection manager with a sane
// default client if none is supplied.
func NewHTTPConnectionManager(client *http.Client) *HTTPConnectionManager {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPConnectionManager{Client: client}
}

// Fetch implements tracker.ConnectionManager.
func (c *HTTPConnectionManager) Fetch(url string) (tracker.SegmentChunk, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new segment request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch segment %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch segment %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read segment %s: %w", url, err)
	}
	return &HTTPChunk{data: body, contentType: resp.Header.Get("Content-Type")}, nil
}

// HTTPChunk is a fully-buffered segment response implementing
// tracker.SegmentChunk. It never reports a discontinuity: plain DASH has no
// EXT-X-DISCONTINUITY-style signal, and the byte stream is not inspected for
// one.
type HTTPChunk struct {
	data        []byte
	pos         int
	contentType string
	format      tracker.StreamFormat
}

// Discontinuity implements tracker.SegmentChunk.
func (c *HTTPChunk) Discontinuity() (bool, uint64) {
	return false, 0
}

// GetStreamFormat implements tracker.SegmentChunk.
func (c *HTTPChunk) GetStreamFormat() tracker.StreamFormat {
	return c.format
}

// SetStreamFormat implements tracker.SegmentChunk.
func (c *HTTPChunk) SetStreamFormat(f tracker.StreamFormat) {
	c.format = f
}

// Peek implements tracker.SegmentChunk, returning successive slices of the
// buffered body.
func (c *HTTPChunk) Peek(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := copy(p, c.data[c.pos:])
	c.pos += n
	return n, nil
}

// GetContentType implements tracker.SegmentChunk.
func (c *HTTPChunk) GetContentType() string {
	return c.contentType
}
