// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package tracker

import (
	"strings"

	"github.com/dash-segtrack/segtrack/pkg/chunkparser"
	"github.com/dash-segtrack/segtrack/pkg/cmaf"
	"github.com/dash-segtrack/segtrack/pkg/tsprobe"
)

// probePrefixSize is how much of a chunk is peeked to resolve its format.
// Large enough to reach past an ftyp/styp box into the first real box, small
// enough to stay a cheap bounded read.
const probePrefixSize = 4096

// ProbeableChunk wraps a SegmentChunk whose format was Unknown so that the
// bytes consumed while probing can be replayed to the downstream demuxer.
type ProbeableChunk struct {
	SegmentChunk
	prefix    []byte
	prefixPos int
}

// newProbeableChunk peeks up to probePrefixSize bytes from c and wraps it.
func newProbeableChunk(c SegmentChunk) *ProbeableChunk {
	buf := make([]byte, probePrefixSize)
	n, _ := c.Peek(buf)
	return &ProbeableChunk{SegmentChunk: c, prefix: buf[:n]}
}

// Peek replays the buffered probe prefix first, then forwards to the
// underlying chunk once the prefix is exhausted.
func (p *ProbeableChunk) Peek(b []byte) (int, error) {
	if p.prefixPos < len(p.prefix) {
		n := copy(b, p.prefix[p.prefixPos:])
		p.prefixPos += n
		return n, nil
	}
	return p.SegmentChunk.Peek(b)
}

// resolveFormat determines c's stream format by peeking its prefix, falling
// back to the chunk's declared MIME content-type. It returns the wrapper to
// use going forward (so the peeked bytes stay re-readable) and the resolved
// format. If c's format was already known, resolveFormat is not called at
// all; see Tracker.NextChunk.
func resolveFormat(c SegmentChunk) (SegmentChunk, StreamFormat) {
	wrapped := newProbeableChunk(c)
	format := detectFormatFromBytes(wrapped.prefix)
	if format == FormatUnknown {
		format = detectFormatFromContentType(c.GetContentType())
	}
	return wrapped, format
}

// detectFormatFromBytes inspects a peeked prefix for fmp4 box magic or the
// MPEG-TS sync pattern.
func detectFormatFromBytes(buf []byte) StreamFormat {
	if looksLikeMP4(buf) {
		return FormatMP4
	}
	if tsprobe.Looks(buf) {
		return FormatMPEGTS
	}
	if looksLikeWebM(buf) {
		return FormatWebM
	}
	return FormatUnknown
}

// looksLikeMP4 scans the top-level ISO-BMFF boxes in buf for a recognised
// fmp4 box type, reusing pkg/chunkparser's box-header reader rather than
// re-reading the size+fourcc fields by hand. It walks the bounded probe
// prefix directly instead of running chunkparser's streaming Parse, since a
// garbage (non-mp4) prefix can carry an arbitrary 32-bit value in the size
// field and Parse's buffer growth trusts that value.
func looksLikeMP4(buf []byte) bool {
	off := 0
	for {
		size, boxType, ok := chunkparser.ReadBoxHeader(buf, off)
		if !ok {
			return false
		}
		switch boxType {
		case "ftyp", "styp", "moov", "moof", "mdat", "sidx", "free":
			return true
		}
		if size < 8 {
			return false
		}
		off += int(size)
	}
}

// webmHeader is the EBML magic every WebM/Matroska file starts with.
var webmHeader = []byte{0x1A, 0x45, 0xDF, 0xA3}

func looksLikeWebM(buf []byte) bool {
	return len(buf) >= len(webmHeader) && string(buf[:len(webmHeader)]) == string(webmHeader)
}

// detectFormatFromContentType falls back to the MIME type reported alongside
// the segment bytes when magic-byte probing was inconclusive.
func detectFormatFromContentType(contentType string) StreamFormat {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if semi := strings.Index(ct, ";"); semi >= 0 {
		ct = ct[:semi]
	}
	switch ct {
	case "video/mp4", "audio/mp4", "application/mp4":
		return FormatMP4
	case "video/mp2t", "application/mp2t", "video/mpeg":
		return FormatMPEGTS
	case "video/webm", "audio/webm":
		return FormatWebM
	}
	for _, ext := range []string{cmaf.CMAFVideoExtension, cmaf.CMAFAudioExtension, cmaf.CMAFTextExtension, cmaf.CMAFMetaExtension} {
		if strings.HasSuffix(ct, ext) {
			return FormatMP4
		}
	}
	return FormatUnknown
}
