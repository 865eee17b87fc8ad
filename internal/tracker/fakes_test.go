// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

import (
	"time"
)

// fakeRepresentation is a minimal, fully scriptable Representation used by
// the tracker's unit tests. Every behavior defaults to something harmless
// and is overridable per test via the function-valued fields.
type fakeRepresentation struct {
	id       string
	initSeg  *fakeSegment
	indexSeg *fakeSegment
	needsIdx bool
	aligned  bool
	codecs   string

	// segments maps available media segment numbers to their ISegment.
	segments map[uint64]*fakeSegment

	translateFn     func(n uint64, from Representation) uint64
	minAheadFn      func(n uint64) time.Duration
	segNumByTimeFn  func(t time.Duration) (uint64, bool)
	playbackTimeFn  func(n uint64) (time.Duration, time.Duration, bool)
	needsUpdateFn   func(n uint64) bool
	runLocalFn      func(resources SharedResources) bool
	canNoLongerFn   func() bool
	mediaRangeFn    func() (time.Duration, time.Duration, time.Duration, bool)
	scheduleNextCnt int
}

func (r *fakeRepresentation) GetID() string { return r.id }

func (r *fakeRepresentation) NeedsUpdate(n uint64) bool {
	if r.needsUpdateFn != nil {
		return r.needsUpdateFn(n)
	}
	return false
}

func (r *fakeRepresentation) RunLocalUpdates(resources SharedResources) bool {
	if r.runLocalFn != nil {
		return r.runLocalFn(resources)
	}
	return true
}

func (r *fakeRepresentation) ScheduleNextUpdate(n uint64, didUpdate bool) {
	r.scheduleNextCnt++
}

func (r *fakeRepresentation) CanNoLongerUpdate() bool {
	if r.canNoLongerFn != nil {
		return r.canNoLongerFn()
	}
	return false
}

func (r *fakeRepresentation) TranslateSegmentNumber(n uint64, from Representation) uint64 {
	if r.translateFn != nil {
		return r.translateFn(n, from)
	}
	return n
}

func (r *fakeRepresentation) GetMinAheadTime(n uint64) time.Duration {
	if r.minAheadFn != nil {
		return r.minAheadFn(n)
	}
	return time.Hour
}

func (r *fakeRepresentation) GetNextMediaSegment(n uint64) (ISegment, uint64, bool, bool) {
	if r.segments == nil {
		return nil, n, false, false
	}
	if seg, ok := r.segments[n]; ok {
		return seg, n, false, true
	}
	// Find the next available segment number >= n, reporting a gap.
	best, found := uint64(0), false
	for num := range r.segments {
		if num >= n && (!found || num < best) {
			best, found = num, true
		}
	}
	if !found {
		return nil, n, false, false
	}
	return r.segments[best], best, best != n, true
}

func (r *fakeRepresentation) GetInitSegment() (ISegment, bool) {
	if r.initSeg == nil {
		return nil, false
	}
	return r.initSeg, true
}

func (r *fakeRepresentation) NeedsIndex() bool { return r.needsIdx }

func (r *fakeRepresentation) GetIndexSegment() (ISegment, bool) {
	if r.indexSeg == nil {
		return nil, false
	}
	return r.indexSeg, true
}

func (r *fakeRepresentation) GetSegmentNumberByTime(t time.Duration) (uint64, bool) {
	if r.segNumByTimeFn != nil {
		return r.segNumByTimeFn(t)
	}
	return 0, false
}

func (r *fakeRepresentation) GetPlaybackTimeDurationBySegmentNumber(n uint64) (time.Duration, time.Duration, bool) {
	if r.playbackTimeFn != nil {
		return r.playbackTimeFn(n)
	}
	return time.Duration(n) * time.Second, time.Second, true
}

func (r *fakeRepresentation) GetStreamFormat() StreamFormat { return FormatUnknown }

func (r *fakeRepresentation) GetCodecsDesc() string { return r.codecs }

func (r *fakeRepresentation) GetMediaPlaybackRange() (time.Duration, time.Duration, time.Duration, bool) {
	if r.mediaRangeFn != nil {
		return r.mediaRangeFn()
	}
	return 0, 0, 0, false
}

func (r *fakeRepresentation) IsSegmentAligned() bool { return r.aligned }

// fakeSegment is a minimal ISegment.
type fakeSegment struct {
	displayTime time.Duration
	toChunkFn   func() (SegmentChunk, bool)
	chunk       *fakeChunk
}

func (s *fakeSegment) ToChunk(resources SharedResources, connMgr ConnectionManager, n uint64, rep Representation) (SegmentChunk, bool) {
	if s.toChunkFn != nil {
		return s.toChunkFn()
	}
	if s.chunk != nil {
		return s.chunk, true
	}
	return nil, false
}

func (s *fakeSegment) GetDisplayTime() time.Duration { return s.displayTime }

// fakeChunk is a minimal SegmentChunk.
type fakeChunk struct {
	isDisc      bool
	discSeq     uint64
	format      StreamFormat
	data        []byte
	contentType string
	pos         int
}

func (c *fakeChunk) Discontinuity() (bool, uint64) { return c.isDisc, c.discSeq }

func (c *fakeChunk) GetStreamFormat() StreamFormat   { return c.format }
func (c *fakeChunk) SetStreamFormat(f StreamFormat)  { c.format = f }
func (c *fakeChunk) GetContentType() string          { return c.contentType }

func (c *fakeChunk) Peek(p []byte) (int, error) {
	n := copy(p, c.data[c.pos:])
	c.pos += n
	return n, nil
}

// fakeAdaptationSet is a minimal AdaptationSet.
type fakeAdaptationSet struct {
	id      string
	reps    []Representation
	aligned bool
}

func (a *fakeAdaptationSet) GetID() string                    { return a.id }
func (a *fakeAdaptationSet) Representations() []Representation { return a.reps }
func (a *fakeAdaptationSet) IsSegmentAligned() bool            { return a.aligned }

// fakeAdaptation is a scriptable AdaptationLogic that also records every
// event it is notified of.
type fakeAdaptation struct {
	nextFn func(as AdaptationSet, current Representation) (Representation, bool)
	events []Event
}

func (a *fakeAdaptation) Notify(e *Event) { a.events = append(a.events, *e) }

func (a *fakeAdaptation) GetNextRepresentation(as AdaptationSet, current Representation) (Representation, bool) {
	if a.nextFn != nil {
		return a.nextFn(as, current)
	}
	return nil, false
}

// fakeBuffering is a scriptable BufferingLogic.
type fakeBuffering struct {
	startFn func(rep Representation) (uint64, bool)
}

func (b *fakeBuffering) GetStartSegmentNumber(rep Representation) (uint64, bool) {
	if b.startFn != nil {
		return b.startFn(rep)
	}
	return 0, true
}

// fakeSyncRefs is a minimal in-memory SynchronizationReferences.
type fakeSyncRefs struct {
	m map[uint64]SynchronizationReference
}

func newFakeSyncRefs() *fakeSyncRefs {
	return &fakeSyncRefs{m: make(map[uint64]SynchronizationReference)}
}

func (s *fakeSyncRefs) GetReference(discSeq uint64, t time.Duration) (SynchronizationReference, bool) {
	ref, ok := s.m[discSeq]
	return ref, ok
}

func (s *fakeSyncRefs) AddReference(discSeq uint64, ref SynchronizationReference) {
	s.m[discSeq] = ref
}

// recordingListener captures every event notified to it, in order.
type recordingListener struct {
	events []Event
}

func (l *recordingListener) Notify(e *Event) { l.events = append(l.events, *e) }

func (l *recordingListener) kinds() []EventKind {
	kinds := make([]EventKind, len(l.events))
	for i, e := range l.events {
		kinds[i] = e.Kind
	}
	return kinds
}
