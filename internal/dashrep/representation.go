// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package dashrep

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	m "github.com/Eyevinn/dash-mpd/mpd"

	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// timelineEntry is one flattened (number, startTime, duration) triple derived
// either from a SegmentTimeline or from $Number$-style constant-duration
// addressing, whichever the representation's SegmentTemplate uses.
type timelineEntry struct {
	Number uint64
	Start  uint64 // in segTimescale units
	Dur    uint64 // in segTimescale units
}

// Representation adapts one DASH AdaptationSet/Representation pair to
// tracker.Representation, resolving $Number$/$Time$ segment addressing
// against the owning Manifest's SegmentTemplate.
type Representation struct {
	manifest  *Manifest
	period    *m.PeriodType
	as        *m.AdaptationSetType
	rep       *m.RepresentationType
	connMgr   tracker.ConnectionManager
	timescale uint64

	mu            sync.Mutex
	lastRefreshed time.Time
	nextRefreshAt time.Time
	staleWindow   time.Duration
}

func newRepresentation(mf *Manifest, period *m.PeriodType, as *m.AdaptationSetType, rep *m.RepresentationType, connMgr tracker.ConnectionManager) *Representation {
	tmpl := segmentTemplateFor(as, rep)
	ts := uint64(1)
	if tmpl != nil && tmpl.Timescale != nil {
		ts = uint64(*tmpl.Timescale)
	}
	return &Representation{
		manifest:    mf,
		period:      period,
		as:          as,
		rep:         rep,
		connMgr:     connMgr,
		timescale:   ts,
		staleWindow: 2 * time.Second,
	}
}

func segmentTemplateFor(as *m.AdaptationSetType, rep *m.RepresentationType) *m.SegmentTemplateType {
	if rep.SegmentTemplate != nil {
		return rep.SegmentTemplate
	}
	return as.SegmentTemplate
}

func (r *Representation) segTmpl() *m.SegmentTemplateType {
	return segmentTemplateFor(r.as, r.rep)
}

// GetID implements tracker.Representation.
func (r *Representation) GetID() string {
	return r.rep.Id
}

// NeedsUpdate implements tracker.Representation: a dynamic manifest is stale
// until a first refresh has been scheduled, and again once the time set by
// ScheduleNextUpdate has passed. n is not consulted.
func (r *Representation) NeedsUpdate(n uint64) bool {
	if !r.manifest.IsDynamic() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextRefreshAt.IsZero() {
		return true
	}
	return time.Now().After(r.nextRefreshAt)
}

// RunLocalUpdates implements tracker.Representation by re-fetching the
// manifest this representation belongs to.
func (r *Representation) RunLocalUpdates(resources tracker.SharedResources) bool {
	ctx := context.Background()
	if fr, ok := resources.(interface{ Context() context.Context }); ok {
		ctx = fr.Context()
	}
	ok := r.manifest.Refresh(ctx)
	r.mu.Lock()
	r.lastRefreshed = time.Now()
	r.mu.Unlock()
	return ok
}

// ScheduleNextUpdate implements tracker.Representation, using the MPD's
// declared minimumUpdatePeriod, falling back to the staleWindow.
func (r *Representation) ScheduleNextUpdate(n uint64, didUpdate bool) {
	period, ok := r.manifest.MinimumUpdatePeriod()
	if !ok {
		period = r.staleWindow
	}
	r.mu.Lock()
	r.nextRefreshAt = time.Now().Add(period)
	r.mu.Unlock()
}

// CanNoLongerUpdate implements tracker.Representation: once a manifest has
// settled into a static (VOD) type there is nothing left to refresh.
func (r *Representation) CanNoLongerUpdate() bool {
	return !r.manifest.IsDynamic()
}

// TranslateSegmentNumber implements tracker.Representation. Aligned
// representations within one adaptation set share a segment timeline, so the
// number itself carries over unchanged when from belongs to the same period.
// No cross-period mapping is done: a from in another period yields
// tracker.SentinelNumber.
func (r *Representation) TranslateSegmentNumber(n uint64, from tracker.Representation) uint64 {
	other, ok := from.(*Representation)
	if !ok || other == nil {
		return n
	}
	if other.period == r.period {
		return n
	}
	return tracker.SentinelNumber
}

// GetMinAheadTime implements tracker.Representation: for VOD, always far
// ahead (one hour); for live, segment n's end on the timeline minus the time
// elapsed since the manifest's availabilityStartTime, floored at zero. No
// presentation delay is subtracted.
func (r *Representation) GetMinAheadTime(n uint64) time.Duration {
	if !r.manifest.IsDynamic() {
		return time.Hour
	}
	entries := r.timeline()
	for _, e := range entries {
		if e.Number == n {
			segEnd := time.Duration(e.Start+e.Dur) * time.Second / time.Duration(r.timescale)
			liveEdge := time.Since(r.availabilityStart())
			remaining := segEnd - liveEdge
			if remaining < 0 {
				return 0
			}
			return remaining
		}
	}
	return 0
}

func (r *Representation) availabilityStart() time.Time {
	doc := r.manifest.Document()
	t, err := doc.AvailabilityStartTime.ConvertToSeconds()
	if err != nil {
		return time.Now()
	}
	return time.Unix(int64(t), 0)
}

// timeline flattens the representation's SegmentTemplate into per-number
// (start, duration) entries, from either an explicit SegmentTimeline or
// constant-duration $Number$ addressing.
func (r *Representation) timeline() []timelineEntry {
	tmpl := r.segTmpl()
	if tmpl == nil {
		return nil
	}
	startNr := uint64(1)
	if tmpl.StartNumber != nil {
		startNr = uint64(*tmpl.StartNumber)
	}
	if tmpl.SegmentTimeline != nil {
		return flattenTimeline(tmpl.SegmentTimeline, startNr)
	}
	if tmpl.Duration == nil {
		return nil
	}
	dur := uint64(*tmpl.Duration)
	periodDur, err := r.period.GetDuration()
	periodDurS := time.Duration(periodDur).Seconds()
	if err != nil || periodDurS <= 0 {
		return nil
	}
	nrSegments := uint64(periodDurS) * r.timescale / dur
	entries := make([]timelineEntry, 0, nrSegments+1)
	start := uint64(0)
	for i := uint64(0); i <= nrSegments; i++ {
		entries = append(entries, timelineEntry{Number: startNr + i, Start: start, Dur: dur})
		start += dur
	}
	return entries
}

func flattenTimeline(stl *m.SegmentTimelineType, startNr uint64) []timelineEntry {
	var entries []timelineEntry
	start := uint64(0)
	nr := startNr
	for _, s := range stl.S {
		if s.T != nil {
			start = *s.T
		}
		entries = append(entries, timelineEntry{Number: nr, Start: start, Dur: s.D})
		start += s.D
		nr++
		for i := int64(0); i < int64(s.R); i++ {
			entries = append(entries, timelineEntry{Number: nr, Start: start, Dur: s.D})
			start += s.D
			nr++
		}
	}
	return entries
}

// GetNextMediaSegment implements tracker.Representation: the entry at n if
// present, else the earliest entry whose number exceeds n (reporting a gap).
func (r *Representation) GetNextMediaSegment(n uint64) (tracker.ISegment, uint64, bool, bool) {
	entries := r.timeline()
	for _, e := range entries {
		if e.Number == n {
			return r.segmentFor(e), e.Number, false, true
		}
	}
	for _, e := range entries {
		if e.Number > n {
			return r.segmentFor(e), e.Number, true, true
		}
	}
	return nil, n, false, false
}

func (r *Representation) segmentFor(e timelineEntry) tracker.ISegment {
	media, _ := r.rep.GetMedia()
	url := resolveIdentifiers(media, r.rep, e.Number, e.Start)
	dur := time.Duration(e.Dur) * time.Second / time.Duration(r.timescale)
	display := time.Duration(e.Start) * time.Second / time.Duration(r.timescale)
	return &Segment{
		rep:         r,
		url:         r.resolveURL(url),
		displayTime: display,
		duration:    dur,
	}
}

// GetInitSegment implements tracker.Representation. The returned ISegment
// refines r.timescale from the init segment's own moov box once fetched,
// since a SegmentTemplate's declared @timescale is occasionally absent or
// stale relative to what the media actually carries.
func (r *Representation) GetInitSegment() (tracker.ISegment, bool) {
	tmpl := r.segTmpl()
	if tmpl == nil || tmpl.Initialization == "" {
		return nil, false
	}
	url := resolveIdentifiers(tmpl.Initialization, r.rep, 0, 0)
	return &initSegment{rep: r, url: r.resolveURL(url)}, true
}

// NeedsIndex implements tracker.Representation: this adapter relies on
// self-initializing media segments (sidx-in-segment), never a standalone
// index segment, matching CMAF/fMP4 addressing in the teacher's asset model.
func (r *Representation) NeedsIndex() bool {
	return false
}

// GetIndexSegment implements tracker.Representation.
func (r *Representation) GetIndexSegment() (tracker.ISegment, bool) {
	return nil, false
}

// GetSegmentNumberByTime implements tracker.Representation.
func (r *Representation) GetSegmentNumberByTime(at time.Duration) (uint64, bool) {
	target := uint64(at.Seconds() * float64(r.timescale))
	entries := r.timeline()
	for _, e := range entries {
		if target >= e.Start && target < e.Start+e.Dur {
			return e.Number, true
		}
	}
	if len(entries) > 0 && target < entries[0].Start {
		return entries[0].Number, true
	}
	return 0, false
}

// GetPlaybackTimeDurationBySegmentNumber implements tracker.Representation.
func (r *Representation) GetPlaybackTimeDurationBySegmentNumber(n uint64) (time.Duration, time.Duration, bool) {
	entries := r.timeline()
	for _, e := range entries {
		if e.Number == n {
			start := time.Duration(e.Start) * time.Second / time.Duration(r.timescale)
			dur := time.Duration(e.Dur) * time.Second / time.Duration(r.timescale)
			return start, dur, true
		}
	}
	return 0, 0, false
}

// GetStreamFormat implements tracker.Representation: DASH addressing never
// declares the container on its own, so probing is always required.
func (r *Representation) GetStreamFormat() tracker.StreamFormat {
	return tracker.FormatUnknown
}

// GetCodecsDesc implements tracker.Representation.
func (r *Representation) GetCodecsDesc() string {
	if r.rep.Codecs != "" {
		return r.rep.Codecs
	}
	return r.as.Codecs
}

// GetMediaPlaybackRange implements tracker.Representation.
func (r *Representation) GetMediaPlaybackRange() (time.Duration, time.Duration, time.Duration, bool) {
	entries := r.timeline()
	if len(entries) == 0 {
		return 0, 0, 0, false
	}
	first, last := entries[0], entries[len(entries)-1]
	start := time.Duration(first.Start) * time.Second / time.Duration(r.timescale)
	end := time.Duration(last.Start+last.Dur) * time.Second / time.Duration(r.timescale)
	return start, end, end - start, true
}

// IsSegmentAligned implements tracker.Representation: every representation
// built from the same AdaptationSet shares one SegmentTemplate lineage.
func (r *Representation) IsSegmentAligned() bool {
	return true
}

// IsLive reports whether this representation belongs to a dynamic (live)
// manifest, consulted by buffering.LiveEdge to decide whether to start near
// the live edge or at the beginning of the available range.
func (r *Representation) IsLive() bool {
	return r.manifest.IsDynamic()
}

// GetBandwidth exposes the representation's declared bitrate, consulted by
// adaptation.BandwidthLadder to rank candidates. Not part of
// tracker.Representation: bandwidth is a DASH-specific selection signal, not
// something every protocol's representation needs to expose.
func (r *Representation) GetBandwidth() uint64 {
	return uint64(r.rep.Bandwidth)
}

// resolveURL joins a resolved media/init path against the manifest's base URL.
func (r *Representation) resolveURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return r.manifest.baseURLFor() + path
}

// resolveIdentifiers substitutes $RepresentationID$, $Bandwidth$, $Number$,
// and $Time$ in a SegmentTemplate address, per ISO/IEC 23009-1 §5.3.9.4.
func resolveIdentifiers(pattern string, rep *m.RepresentationType, number, t uint64) string {
	out := strings.ReplaceAll(pattern, "$RepresentationID$", rep.Id)
	out = strings.ReplaceAll(out, "$Bandwidth$", strconv.FormatUint(uint64(rep.Bandwidth), 10))
	out = strings.ReplaceAll(out, "$Number$", strconv.FormatUint(number, 10))
	out = strings.ReplaceAll(out, "$Time$", strconv.FormatUint(t, 10))
	return out
}
