// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package buffering provides the default BufferingLogic implementations the
// segment tracker consults to pick a starting segment number.
package buffering

import (
	"time"

	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// LiveEdge starts playback Delay behind the end of a representation's
// available media range, the conventional "presentation delay" of a live
// DASH session. For a VOD representation (where the range's end never
// moves), it instead starts at the very first available segment.
type LiveEdge struct {
	// Delay is how far behind the live edge to start, e.g. 3x segment
	// duration to tolerate normal manifest-refresh jitter.
	Delay time.Duration
}

// NewLiveEdge constructs a LiveEdge policy with the given presentation delay.
func NewLiveEdge(delay time.Duration) *LiveEdge {
	return &LiveEdge{Delay: delay}
}

// liveReporter is the optional capability a tracker.Representation may
// implement to distinguish a live manifest from a VOD one;
// dashrep.Representation does, through IsLive.
type liveReporter interface {
	IsLive() bool
}

// GetStartSegmentNumber implements tracker.BufferingLogic.
func (l *LiveEdge) GetStartSegmentNumber(rep tracker.Representation) (uint64, bool) {
	start, end, length, ok := rep.GetMediaPlaybackRange()
	if !ok {
		return 0, false
	}
	live, _ := rep.(liveReporter)
	if live == nil || !live.IsLive() || length <= l.Delay {
		// VOD, or a range too short for the configured delay: start at the
		// beginning rather than clamping into a degenerate window.
		return rep.GetSegmentNumberByTime(start)
	}
	return rep.GetSegmentNumberByTime(end - l.Delay)
}
