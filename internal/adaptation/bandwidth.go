// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package adaptation provides the default AdaptationLogic implementations
// the segment tracker is driven by.
package adaptation

import (
	"sort"

	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// bandwidthReporter is the optional capability a tracker.Representation may
// implement to participate in bandwidth-ladder selection; dashrep.Representation
// does, through GetBandwidth.
type bandwidthReporter interface {
	GetBandwidth() uint64
}

// BandwidthLadder is a conservative-start, one-step-at-a-time adaptation
// policy: it always begins a new adaptation set at its lowest-bandwidth
// representation, then climbs or descends the bandwidth-sorted ladder by one
// rung per buffering-level signal, never jumping straight to the top.
type BandwidthLadder struct {
	lastLevel bufferingLevel
}

type bufferingLevel int

const (
	levelUnknown bufferingLevel = iota
	levelLow
	levelHealthy
	levelFull
)

// NewBandwidthLadder constructs a BandwidthLadder in its initial, level-
// unknown state.
func NewBandwidthLadder() *BandwidthLadder {
	return &BandwidthLadder{}
}

// Notify implements tracker.Listener, tracking the most recent buffering
// level so GetNextRepresentation can decide whether to climb or descend.
func (b *BandwidthLadder) Notify(e *tracker.Event) {
	if e.Kind != tracker.EventBufferingLevelChange {
		return
	}
	switch {
	case e.LevelCurrent <= e.LevelMin:
		b.lastLevel = levelLow
	case e.LevelCurrent >= e.LevelMax:
		b.lastLevel = levelFull
	default:
		b.lastLevel = levelHealthy
	}
}

// GetNextRepresentation implements tracker.AdaptationLogic.
func (b *BandwidthLadder) GetNextRepresentation(as tracker.AdaptationSet, current tracker.Representation) (tracker.Representation, bool) {
	ladder := sortedByBandwidth(as.Representations())
	if len(ladder) == 0 {
		return nil, false
	}
	if current == nil {
		return ladder[0], true
	}

	idx := indexOf(ladder, current)
	if idx == -1 {
		return ladder[0], true
	}

	switch b.lastLevel {
	case levelLow:
		if idx > 0 {
			idx--
		}
	case levelFull:
		if idx < len(ladder)-1 {
			idx++
		}
	}
	return ladder[idx], true
}

func sortedByBandwidth(reps []tracker.Representation) []tracker.Representation {
	ladder := make([]tracker.Representation, len(reps))
	copy(ladder, reps)
	sort.SliceStable(ladder, func(i, j int) bool {
		return bandwidthOf(ladder[i]) < bandwidthOf(ladder[j])
	})
	return ladder
}

func bandwidthOf(rep tracker.Representation) uint64 {
	if br, ok := rep.(bandwidthReporter); ok {
		return br.GetBandwidth()
	}
	return 0
}

func indexOf(ladder []tracker.Representation, rep tracker.Representation) int {
	for i, r := range ladder {
		if r == rep {
			return i
		}
	}
	return -1
}
