// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package dashrep adapts DASH MPD manifests and their representations to the
// tracker package's Representation/ISegment/SegmentChunk interfaces, using
// github.com/Eyevinn/dash-mpd for manifest parsing and github.com/Eyevinn/mp4ff
// for fragment inspection.
package dashrep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	m "github.com/Eyevinn/dash-mpd/mpd"

	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// Manifest owns one fetched MPD document and knows how to refresh it.
type Manifest struct {
	URL    string
	client *http.Client
	log    *slog.Logger

	mu        sync.Mutex
	doc       *m.MPD
	fetchedAt time.Time
}

// FetchManifest downloads and parses the MPD at url.
func FetchManifest(ctx context.Context, url string, client *http.Client, log *slog.Logger) (*Manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.Default()
	}
	mf := &Manifest{URL: url, client: client, log: log}
	if err := mf.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return mf, nil
}

func (mf *Manifest) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mf.URL, nil)
	if err != nil {
		return fmt.Errorf("new mpd request: %w", err)
	}
	resp, err := mf.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch mpd %s: %w", mf.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("fetch mpd %s: status %d", mf.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read mpd %s: %w", mf.URL, err)
	}
	doc, err := m.ReadFromString(string(body))
	if err != nil {
		return fmt.Errorf("parse mpd %s: %w", mf.URL, err)
	}
	mf.mu.Lock()
	mf.doc = doc
	mf.fetchedAt = time.Now()
	mf.mu.Unlock()
	return nil
}

// Refresh re-fetches the manifest, replacing the current document on success.
func (mf *Manifest) Refresh(ctx context.Context) bool {
	if err := mf.refreshLocked(ctx); err != nil {
		mf.log.Warn("manifest refresh failed", "url", mf.URL, "error", err)
		return false
	}
	return true
}

// Document returns the currently held MPD, safe to read concurrently with a
// Refresh from the fetcher goroutine, but not with concurrent readers of the
// *Representation views into it; see the tracker's single-threaded contract.
func (mf *Manifest) Document() *m.MPD {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return mf.doc
}

// IsDynamic reports whether the manifest describes a live (as opposed to VOD)
// presentation.
func (mf *Manifest) IsDynamic() bool {
	doc := mf.Document()
	return doc.Type != nil && *doc.Type == "dynamic"
}

// MinimumUpdatePeriod reports the manifest's declared refresh interval.
func (mf *Manifest) MinimumUpdatePeriod() (time.Duration, bool) {
	doc := mf.Document()
	if doc.MinimumUpdatePeriod == nil {
		return 0, false
	}
	return time.Duration(*doc.MinimumUpdatePeriod), true
}

// baseURLFor derives the resolution base for relative segment URLs: the
// manifest's own URL directory. A BaseURL element in the MPD itself would
// override this, matching dashfetcher's own getBase(mpdURL) logic, but
// server-relative (BaseURL-qualified) assets are out of scope here.
func (mf *Manifest) baseURLFor() string {
	idx := strings.LastIndex(mf.URL, "/")
	if idx == -1 {
		return ""
	}
	return mf.URL[:idx+1]
}

// Representations builds one dashrep.Representation per AdaptationSet
// bandwidth tier that matches adaptationSetID, in manifest order. An empty
// adaptationSetID selects the first adaptation set found in the first period.
func (mf *Manifest) Representations(adaptationSetID string, connMgr tracker.ConnectionManager) ([]*Representation, error) {
	doc := mf.Document()
	for _, period := range doc.Periods {
		for _, as := range period.AdaptationSets {
			if adaptationSetID != "" {
				if as.Id == nil || fmt.Sprintf("%d", *as.Id) != adaptationSetID {
					continue
				}
			}
			var reps []*Representation
			for _, rep := range as.Representations {
				reps = append(reps, newRepresentation(mf, period, as, rep, connMgr))
			}
			return reps, nil
		}
	}
	return nil, fmt.Errorf("no adaptation set with id %s", adaptationSetID)
}

// AdaptationSet adapts one DASH AdaptationSet to tracker.AdaptationSet,
// resolving all of its Representation views once, on construction.
type AdaptationSet struct {
	id   string
	reps []tracker.Representation
}

// NewAdaptationSet resolves adaptationSetID (or the first adaptation set, if
// empty) against mf and wraps it as a tracker.AdaptationSet.
func NewAdaptationSet(mf *Manifest, adaptationSetID string, connMgr tracker.ConnectionManager) (*AdaptationSet, error) {
	reps, err := mf.Representations(adaptationSetID, connMgr)
	if err != nil {
		return nil, err
	}
	if len(reps) == 0 {
		return nil, fmt.Errorf("adaptation set %q has no representations", adaptationSetID)
	}
	trackerReps := make([]tracker.Representation, len(reps))
	for i, r := range reps {
		trackerReps[i] = r
	}
	id := adaptationSetID
	if id == "" && reps[0].as.Id != nil {
		id = fmt.Sprintf("%d", *reps[0].as.Id)
	}
	return &AdaptationSet{id: id, reps: trackerReps}, nil
}

// GetID implements tracker.AdaptationSet.
func (a *AdaptationSet) GetID() string { return a.id }

// Representations implements tracker.AdaptationSet.
func (a *AdaptationSet) Representations() []tracker.Representation { return a.reps }

// IsSegmentAligned implements tracker.AdaptationSet. DASH representations
// within one adaptation set are required to be segment-aligned by the
// standard (ISO/IEC 23009-1), so this is always true.
func (a *AdaptationSet) IsSegmentAligned() bool { return true }
