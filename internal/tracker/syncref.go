// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

import "time"

// SynchronizationReference carries the cross-track timing correspondence
// recorded for a discontinuity sequence.
type SynchronizationReference struct {
	StreamTime   time.Duration
	PlaybackTime time.Duration
}

// SynchronizationReferences is an opaque key/value store, keyed by
// discontinuity sequence, used to keep independently-tracked audio/video/text
// tracks aligned across a discontinuity. The tracker neither owns nor
// populates it on its own initiative — it only forwards get/add calls made on
// its public surface (spec.md §6).
type SynchronizationReferences interface {
	GetReference(discSeq uint64, t time.Duration) (SynchronizationReference, bool)
	AddReference(discSeq uint64, ref SynchronizationReference)
}
