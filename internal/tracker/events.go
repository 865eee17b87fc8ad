// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

import "time"

// EventKind tags the variant held by an Event.
type EventKind int

const (
	EventDiscontinuity EventKind = iota
	EventSegmentGap
	EventRepresentationSwitch
	EventRepresentationUpdated
	EventRepresentationUpdateFailed
	EventFormatChange
	EventSegmentChange
	EventBufferingStateUpdate
	EventBufferingLevelChange
	EventPositionChange
)

// Event is the tagged union broadcast by the event bus (spec.md §3). Only the
// fields relevant to Kind are populated; it is valid only for the duration of
// the Listener call it is passed to.
type Event struct {
	Kind EventKind

	// EventDiscontinuity
	DiscontinuitySeq uint64

	// EventRepresentationSwitch
	PrevRep Representation
	NextRep Representation

	// EventRepresentationUpdated / EventRepresentationUpdateFailed
	Rep Representation

	// EventFormatChange
	Format StreamFormat

	// EventSegmentChange
	AdaptationSetID string
	Sequence        uint64
	StartTime       time.Duration
	Duration        time.Duration
	DisplayTime     time.Duration

	// EventBufferingStateUpdate
	BufferingID      string
	BufferingEnabled bool

	// EventBufferingLevelChange
	LevelMin     time.Duration
	LevelMax     time.Duration
	LevelCurrent time.Duration
	LevelTarget  time.Duration

	// EventPositionChange
	ResumeTime time.Duration
}

func newRepresentationSwitch(prev, next Representation) Event {
	return Event{Kind: EventRepresentationSwitch, PrevRep: prev, NextRep: next}
}

func newRepresentationUpdated(rep Representation) Event {
	return Event{Kind: EventRepresentationUpdated, Rep: rep}
}

func newRepresentationUpdateFailed(rep Representation) Event {
	return Event{Kind: EventRepresentationUpdateFailed, Rep: rep}
}

func newFormatChange(f StreamFormat) Event {
	return Event{Kind: EventFormatChange, Format: f}
}

func newSegmentGap() Event {
	return Event{Kind: EventSegmentGap}
}

func newDiscontinuity(seq uint64) Event {
	return Event{Kind: EventDiscontinuity, DiscontinuitySeq: seq}
}

func newSegmentChange(adaptationSetID string, seq uint64, start, duration, displayTime time.Duration) Event {
	return Event{
		Kind:            EventSegmentChange,
		AdaptationSetID: adaptationSetID,
		Sequence:        seq,
		StartTime:       start,
		Duration:        duration,
		DisplayTime:     displayTime,
	}
}

func newBufferingStateUpdate(id string, enabled bool) Event {
	return Event{Kind: EventBufferingStateUpdate, BufferingID: id, BufferingEnabled: enabled}
}

func newBufferingLevelChange(id string, min, max, current, target time.Duration) Event {
	return Event{
		Kind:         EventBufferingLevelChange,
		BufferingID:  id,
		LevelMin:     min,
		LevelMax:     max,
		LevelCurrent: current,
		LevelTarget:  target,
	}
}

func newPositionChange(resumeTime time.Duration) Event {
	return Event{Kind: EventPositionChange, ResumeTime: resumeTime}
}
