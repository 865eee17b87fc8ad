// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

// SentinelNumber is the "unset" segment number, equivalent to u64::MAX in the source design.
const SentinelNumber = ^uint64(0)

// Position is a cursor into a representation's segment sequence: which representation,
// which segment number, and which of the three per-segment phases (init, index, media)
// has been emitted so far.
type Position struct {
	Rep        Representation
	Number     uint64
	InitSent   bool
	IndexSent  bool
}

// InvalidPosition returns a zero-value invalid position.
func InvalidPosition() Position {
	return Position{Number: SentinelNumber}
}

// IsValid reports whether p refers to a real representation and segment number.
func (p Position) IsValid() bool {
	return p.Rep != nil && p.Number != SentinelNumber
}

// InInitPhase reports whether p is valid and the init segment has not yet been sent.
func (p Position) InInitPhase() bool {
	return p.IsValid() && !p.InitSent
}

// InIndexPhase reports whether p is valid, the init segment has been sent, but the
// index segment has not.
func (p Position) InIndexPhase() bool {
	return p.IsValid() && p.InitSent && !p.IndexSent
}

// InMediaPhase reports whether p is valid and both the init and index segments have
// been sent, i.e. further pulls advance the media segment number.
func (p Position) InMediaPhase() bool {
	return p.IsValid() && p.InitSent && p.IndexSent
}

// SameRepresentation reports whether p and other refer to the same representation,
// treating two invalid (no-representation) positions as equal.
func (p Position) SameRepresentation(other Position) bool {
	return p.Rep == other.Rep
}

// Increment advances p exactly one phase, per the state machine in spec.md §4.1:
//
//	(init=F, idx=F) -> (init=T, idx=F)                       init segment emitted
//	(init=T, idx=F) -> (init=T, idx=T)                       index segment emitted
//	(init=T, idx=T) -> number+1, (init=T, idx=T)             media segment emitted
//
// Incrementing an invalid position is a no-op.
func (p Position) Increment() Position {
	if !p.IsValid() {
		return p
	}
	switch {
	case !p.InitSent:
		p.InitSent = true
	case !p.IndexSent:
		p.IndexSent = true
	default:
		p.Number++
	}
	return p
}

// WithRepresentation returns a new position for the given representation and
// segment number, at the start of the init phase.
func WithRepresentation(rep Representation, number uint64) Position {
	return Position{Rep: rep, Number: number}
}
