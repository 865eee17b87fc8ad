// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package tracker implements the segment tracker: the component of an
// adaptive streaming client that walks a single track's segment sequence
// across representation switches, materialises chunks for a downstream
// demuxer, and broadcasts lifecycle events to subscribers.
package tracker

import (
	"log/slog"
	"time"
)

// Option configures a Tracker at construction time.
type Option func(*Tracker)

// WithLogger overrides the tracker's logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithTimestampOrigin sets the offset added to every computed segment start
// time, e.g. to align a period's local timeline with a presentation-wide one.
func WithTimestampOrigin(origin time.Duration) Option {
	return func(t *Tracker) { t.timestampOrigin = origin }
}

// WithBufferingID sets the identifier reported in buffering telemetry events.
func WithBufferingID(id string) Option {
	return func(t *Tracker) { t.bufferingID = id }
}

// WithStreamRole sets the role reported by GetStreamRole.
func WithStreamRole(role StreamRole) Option {
	return func(t *Tracker) { t.role = role }
}

// Tracker is the C5 orchestrator: it owns the current/next cursor positions,
// drives the init/index/media state machine, consults the adaptation and
// buffering policies, refreshes representations on demand, and notifies
// listeners of structural events. A Tracker is driven by exactly one
// goroutine; none of its methods are safe to call concurrently (spec.md §5).
type Tracker struct {
	adaptationSet AdaptationSet
	adaptation    AdaptationLogic
	buffering     BufferingLogic
	connMgr       ConnectionManager
	resources     SharedResources
	syncRefs      SynchronizationReferences

	current      Position
	next         Position
	initializing bool
	format       StreamFormat
	queue        chunkQueue
	bus          eventBus

	timestampOrigin time.Duration
	bufferingID     string
	role            StreamRole
	log             *slog.Logger
}

// NewTracker constructs a Tracker for one adaptation set. The adaptation
// policy is registered as an event listener automatically, matching
// spec.md §4.6 ("the adaptation logic registers at construction").
func NewTracker(as AdaptationSet, adaptation AdaptationLogic, buffering BufferingLogic,
	connMgr ConnectionManager, resources SharedResources, syncRefs SynchronizationReferences,
	opts ...Option) *Tracker {
	t := &Tracker{
		adaptationSet: as,
		adaptation:    adaptation,
		buffering:     buffering,
		connMgr:       connMgr,
		resources:     resources,
		syncRefs:      syncRefs,
		current:       InvalidPosition(),
		next:          InvalidPosition(),
		initializing:  true,
		format:        FormatUnknown,
		bufferingID:   "default",
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if adaptation != nil {
		t.bus.register(adaptation)
	}
	return t
}

// RegisterListener adds l to the set of listeners notified by every future
// event. There is no deregistration (spec.md §4.6).
func (t *Tracker) RegisterListener(l Listener) {
	t.bus.register(l)
}

// refreshIfNeeded applies the on-demand refresh pattern of spec.md §4.4. It
// reports whether a refresh was attempted (ran) and, if so, whether it
// succeeded (ok). When no refresh was needed, it reports (false, true).
func (t *Tracker) refreshIfNeeded(rep Representation, n uint64) (ran bool, ok bool) {
	if rep == nil || !rep.NeedsUpdate(n) {
		return false, true
	}
	succeeded := rep.RunLocalUpdates(t.resources)
	rep.ScheduleNextUpdate(n, succeeded)
	if succeeded {
		t.bus.notify(newRepresentationUpdated(rep))
	}
	return true, succeeded
}

// getStartPosition implements spec.md §4.2 step 1.
func (t *Tracker) getStartPosition() (Position, bool) {
	rep, ok := t.adaptation.GetNextRepresentation(t.adaptationSet, nil)
	if !ok || rep == nil {
		return InvalidPosition(), false
	}
	t.refreshIfNeeded(rep, 0)
	n, ok := t.buffering.GetStartSegmentNumber(rep)
	if !ok {
		return InvalidPosition(), false
	}
	return WithRepresentation(rep, n), true
}

// canSwitch reports whether a representation switch may be attempted from
// pos, per the forbidding conditions of spec.md §4.2 step 2.
func (t *Tracker) canSwitch(pos Position) bool {
	if t.adaptationSet == nil || !t.adaptationSet.IsSegmentAligned() {
		return false
	}
	return pos.InitSent && pos.IndexSent
}

// maybeSwitchRepresentation implements spec.md §4.2 step 2.
func (t *Tracker) maybeSwitchRepresentation(pos Position) Position {
	candidate, ok := t.adaptation.GetNextRepresentation(t.adaptationSet, pos.Rep)
	if !ok || candidate == nil || candidate == pos.Rep {
		return pos
	}
	translated := candidate.TranslateSegmentNumber(pos.Number, pos.Rep)
	t.refreshIfNeeded(candidate, translated)
	if translated == SentinelNumber {
		translated = candidate.TranslateSegmentNumber(pos.Number, pos.Rep)
	}
	if translated == SentinelNumber {
		return pos
	}
	if candidate.GetMinAheadTime(translated) == 0 {
		// Past the end of the live window: cancel the switch, the candidate
		// position is discarded.
		return pos
	}
	return WithRepresentation(candidate, translated)
}

// selectPhaseSegment implements spec.md §4.2 step 4. dataSeg is the data
// segment already obtained in step 3; pos may be advanced in place when a
// phase has nothing to send and must be skipped.
func selectPhaseSegment(pos *Position, dataSeg ISegment) ISegment {
	if !pos.InitSent {
		if initSeg, ok := pos.Rep.GetInitSegment(); ok {
			return initSeg
		}
		*pos = pos.Increment()
	}
	if !pos.IndexSent {
		if pos.Rep.NeedsIndex() {
			idxSeg, ok := pos.Rep.GetIndexSegment()
			if !ok {
				return nil
			}
			return idxSeg
		}
		*pos = pos.Increment()
	}
	return dataSeg
}

// prepareChunk implements the core algorithm of spec.md §4.2.
func (t *Tracker) prepareChunk(switchAllowed bool, pos Position) ChunkEntry {
	if !pos.IsValid() {
		started, ok := t.getStartPosition()
		if !ok {
			return invalidChunkEntry(pos)
		}
		pos = started
	}

	if switchAllowed && t.canSwitch(pos) {
		pos = t.maybeSwitchRepresentation(pos)
	}

	dataSeg, adjusted, _, ok := pos.Rep.GetNextMediaSegment(pos.Number)
	if !ok {
		return invalidChunkEntry(pos)
	}
	pos.Number = adjusted

	segToUse := selectPhaseSegment(&pos, dataSeg)
	if segToUse == nil {
		return invalidChunkEntry(pos)
	}

	chunk, ok := segToUse.ToChunk(t.resources, t.connMgr, pos.Number, pos.Rep)
	if !ok {
		return invalidChunkEntry(pos)
	}

	entry := ChunkEntry{Chunk: chunk, Pos: pos, DisplayTime: dataSeg.GetDisplayTime()}
	if start, duration, ok := pos.Rep.GetPlaybackTimeDurationBySegmentNumber(pos.Number); ok {
		entry.StartTime = start + t.timestampOrigin
		entry.Duration = duration
	}
	return entry
}

// NextChunk is the consumer-facing puller of spec.md §4.3. switchAllowed
// governs whether a representation switch may be attempted on this pull.
func (t *Tracker) NextChunk(switchAllowed bool) (SegmentChunk, bool) {
	if t.adaptationSet == nil || !t.next.IsValid() {
		return nil, false
	}

	if t.queue.empty() {
		t.queue.push(t.prepareChunk(switchAllowed, t.next))
	}

	entry, _ := t.queue.peek()
	if !entry.IsValid() {
		t.queue.pop()
		return nil, false
	}

	gap := t.next.Number != entry.Pos.Number
	switched := !t.next.SameRepresentation(entry.Pos) || !t.current.IsValid()
	isDisc, discSeq := entry.Chunk.Discontinuity()
	discontinuity := isDisc && t.current.IsValid() && t.current.Number != t.next.Number

	if switched {
		// current.Rep, not next.Rep: on the very first pull next already
		// carries the representation set_start_position resolved, but
		// current is still invalid, so the switch must be reported as
		// (none -> R) rather than (R -> R).
		t.bus.notify(newRepresentationSwitch(t.current.Rep, entry.Pos.Rep))
		t.initializing = true
	}

	t.next = entry.Pos
	t.current = entry.Pos

	if entry.Chunk.GetStreamFormat() == FormatUnsupported {
		t.queue.pop()
		return nil, false
	}

	var outChunk SegmentChunk = entry.Chunk
	format := entry.Chunk.GetStreamFormat()
	if format == FormatUnknown {
		wrapped, resolved := resolveFormat(entry.Chunk)
		format = resolved
		wrapped.SetStreamFormat(format)
		outChunk = wrapped
	}
	if format != FormatUnknown && format != t.format {
		t.format = format
		t.bus.notify(newFormatChange(format))
	}

	t.queue.pop()

	if t.initializing {
		gap = false
		t.initializing = false
	}

	if gap {
		t.bus.notify(newSegmentGap())
	}
	if discontinuity {
		t.bus.notify(newDiscontinuity(discSeq))
	}
	t.bus.notify(newSegmentChange(t.adaptationSet.GetID(), discSeq, entry.StartTime, entry.Duration, entry.DisplayTime))

	// Always step one phase beyond what was just delivered, gap or not:
	// next was set to entry.Pos above, which already carries the adjusted
	// segment number, so without this step the following pull would ask
	// for that same segment again and deliver it a second time.
	t.next = t.next.Increment()

	return outChunk, true
}

// SetStartPosition picks an initial position for the track, if one has not
// already been chosen. Calling it again once next is valid is a no-op
// (spec.md §8 property 10).
func (t *Tracker) SetStartPosition() bool {
	if t.next.IsValid() {
		return true
	}
	pos, ok := t.getStartPosition()
	if !ok {
		return false
	}
	t.next = pos
	return true
}

// SetPositionByTime implements spec.md §4.5. When tryonly is true, the
// position is resolved but not committed.
func (t *Tracker) SetPositionByTime(at time.Duration, restarted, tryonly bool) bool {
	pos := t.current
	if !pos.IsValid() {
		rep, ok := t.adaptation.GetNextRepresentation(t.adaptationSet, nil)
		if !ok || rep == nil {
			return false
		}
		pos = WithRepresentation(rep, 0)
	}

	if _, ok := t.refreshIfNeeded(pos.Rep, pos.Number); !ok {
		t.log.Warn("representation refresh failed during seek", "representation", pos.Rep.GetID())
		return false
	}

	n, ok := pos.Rep.GetSegmentNumberByTime(at)
	if !ok {
		return false
	}
	pos.Number = n

	if !tryonly {
		t.SetPosition(pos, restarted)
	}
	return true
}

// SetPosition commits pos as the next pull's position, flushing any
// lookahead chunk and invalidating current (spec.md §4.5).
func (t *Tracker) SetPosition(pos Position, restarted bool) {
	if restarted {
		t.initializing = true
	}
	t.current = InvalidPosition()
	t.next = pos
	t.queue.flush()
	t.bus.notify(newPositionChange(t.GetPlaybackTime(true)))
}

// Reset returns the tracker to its just-constructed state, emitting a
// RepresentationSwitch(prev -> none) event (spec.md §8 property 6).
func (t *Tracker) Reset() {
	prevRep := t.current.Rep
	t.bus.notify(newRepresentationSwitch(prevRep, nil))
	t.current = InvalidPosition()
	t.next = InvalidPosition()
	t.queue.flush()
	t.initializing = true
	t.format = FormatUnknown
}

// UpdateSelected refreshes the currently selected representation if needed,
// emitting RepresentationUpdateFailed when it can no longer be refreshed at
// all (spec.md §4.4).
func (t *Tracker) UpdateSelected() {
	if !t.current.IsValid() {
		return
	}
	rep := t.current.Rep
	ran, ok := t.refreshIfNeeded(rep, t.current.Number)
	if ran && !ok && rep.CanNoLongerUpdate() {
		t.bus.notify(newRepresentationUpdateFailed(rep))
	}
}

// selectedRepresentation returns the representation playback is currently
// anchored to: current if valid, else next, else nil.
func (t *Tracker) selectedRepresentation() Representation {
	if t.current.IsValid() {
		return t.current.Rep
	}
	if t.next.IsValid() {
		return t.next.Rep
	}
	return nil
}

// GetPlaybackTime returns the playback time of current (ofNext=false) or
// next (ofNext=true), or zero if that position is invalid.
func (t *Tracker) GetPlaybackTime(ofNext bool) time.Duration {
	pos := t.current
	if ofNext {
		pos = t.next
	}
	if !pos.IsValid() {
		return 0
	}
	start, _, ok := pos.Rep.GetPlaybackTimeDurationBySegmentNumber(pos.Number)
	if !ok {
		return 0
	}
	return start + t.timestampOrigin
}

// GetMediaPlaybackRange reports the available playback range of the
// currently selected representation.
func (t *Tracker) GetMediaPlaybackRange() (start, end, length time.Duration, ok bool) {
	if !t.current.IsValid() {
		return 0, 0, 0, false
	}
	return t.current.Rep.GetMediaPlaybackRange()
}

// GetMinAheadTime reports how far ahead of the live edge playback currently
// is. Per spec.md §9, it anchors on current.Number once playback has begun,
// and falls back to the buffering policy's start number only beforehand —
// this asymmetry is intentional, not a bug: the value is meaningful only
// once playback has begun.
func (t *Tracker) GetMinAheadTime() time.Duration {
	rep := t.selectedRepresentation()
	if rep == nil {
		return 0
	}
	if t.current.IsValid() {
		return rep.GetMinAheadTime(t.current.Number)
	}
	n, ok := t.buffering.GetStartSegmentNumber(rep)
	if !ok {
		return 0
	}
	return rep.GetMinAheadTime(n)
}

// GetCurrentFormat returns the tracker's resolved stream format.
func (t *Tracker) GetCurrentFormat() StreamFormat {
	return t.format
}

// GetCodecsDesc returns the codec string of the currently selected
// representation, or "" if none is selected yet.
func (t *Tracker) GetCodecsDesc() string {
	rep := t.selectedRepresentation()
	if rep == nil {
		return ""
	}
	return rep.GetCodecsDesc()
}

// GetStreamRole returns this track's role within the asset.
func (t *Tracker) GetStreamRole() StreamRole {
	return t.role
}

// GetSynchronizationReference forwards to the shared synchronization-
// reference store.
func (t *Tracker) GetSynchronizationReference(discSeq uint64, at time.Duration) (SynchronizationReference, bool) {
	if t.syncRefs == nil {
		return SynchronizationReference{}, false
	}
	return t.syncRefs.GetReference(discSeq, at)
}

// UpdateSynchronizationReference forwards to the shared synchronization-
// reference store.
func (t *Tracker) UpdateSynchronizationReference(discSeq uint64, ref SynchronizationReference) {
	if t.syncRefs == nil {
		return
	}
	t.syncRefs.AddReference(discSeq, ref)
}

// NotifyBufferingState emits a BufferingStateUpdate event.
func (t *Tracker) NotifyBufferingState(enabled bool) {
	t.bus.notify(newBufferingStateUpdate(t.bufferingID, enabled))
}

// NotifyBufferingLevel emits a BufferingLevelChange event.
func (t *Tracker) NotifyBufferingLevel(min, max, current, target time.Duration) {
	t.bus.notify(newBufferingLevelChange(t.bufferingID, min, max, current, target))
}

// BufferingAvailable reports whether buffering telemetry is currently
// meaningful: only once a position has actually been played from.
func (t *Tracker) BufferingAvailable() bool {
	return t.current.IsValid()
}
