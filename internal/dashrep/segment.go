// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package dashrep

import (
	"time"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// Segment is a single addressable init or media segment, resolved to a
// fetchable URL, implementing tracker.ISegment.
type Segment struct {
	rep         *Representation
	url         string
	displayTime time.Duration
	duration    time.Duration
}

// ToChunk implements tracker.ISegment by fetching the segment's bytes
// through the supplied connection manager.
func (s *Segment) ToChunk(resources tracker.SharedResources, connMgr tracker.ConnectionManager, n uint64, rep tracker.Representation) (tracker.SegmentChunk, bool) {
	mgr := connMgr
	if mgr == nil {
		mgr = s.rep.connMgr
	}
	if mgr == nil {
		return nil, false
	}
	chunk, err := mgr.Fetch(s.url)
	if err != nil {
		return nil, false
	}
	return chunk, true
}

// GetDisplayTime implements tracker.ISegment.
func (s *Segment) GetDisplayTime() time.Duration {
	return s.displayTime
}

// initSegment is the ISegment returned by Representation.GetInitSegment. It
// decodes the fetched moov box with mp4ff to recover the media's real
// timescale, the way livesegment.go's genLiveSegment reads
// initSeg.Moov.Trak.Mdia.Mdhd.Timescale after an mp4.DecodeFileSR.
type initSegment struct {
	rep *Representation
	url string
}

func (s *initSegment) ToChunk(resources tracker.SharedResources, connMgr tracker.ConnectionManager, n uint64, rep tracker.Representation) (tracker.SegmentChunk, bool) {
	mgr := connMgr
	if mgr == nil {
		mgr = s.rep.connMgr
	}
	if mgr == nil {
		return nil, false
	}
	chunk, err := mgr.Fetch(s.url)
	if err != nil {
		return nil, false
	}
	// Read the fully-buffered HTTPChunk's bytes directly rather than through
	// Peek, so the prober downstream still sees an unconsumed byte stream.
	if httpChunk, ok := chunk.(*HTTPChunk); ok {
		if ts, ok := decodeInitTimescale(httpChunk.data); ok {
			s.rep.mu.Lock()
			s.rep.timescale = ts
			s.rep.mu.Unlock()
		}
	}
	return chunk, true
}

func (s *initSegment) GetDisplayTime() time.Duration { return 0 }

// decodeInitTimescale parses buf as an mp4 init segment and returns the
// media timescale declared in its mdhd box.
func decodeInitTimescale(buf []byte) (uint64, bool) {
	if len(buf) == 0 {
		return 0, false
	}
	sr := bits.NewFixedSliceReader(buf)
	initFile, err := mp4.DecodeFileSR(sr)
	if err != nil || initFile.Init == nil || initFile.Init.Moov == nil ||
		initFile.Init.Moov.Trak == nil || initFile.Init.Moov.Trak.Mdia == nil ||
		initFile.Init.Moov.Trak.Mdia.Mdhd == nil {
		return 0, false
	}
	return uint64(initFile.Init.Moov.Trak.Mdia.Mdhd.Timescale), true
}
