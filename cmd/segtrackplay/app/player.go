// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dash-segtrack/segtrack/internal/adaptation"
	"github.com/dash-segtrack/segtrack/internal/buffering"
	"github.com/dash-segtrack/segtrack/internal/dashrep"
	"github.com/dash-segtrack/segtrack/internal/syncref"
	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// Player owns the fetched manifest, the Tracker built against it, and the
// status server exposing its telemetry. It drives NextChunk on a timer until
// ctx is cancelled.
type Player struct {
	cfg     *Config
	log     *slog.Logger
	manager *dashrep.HTTPConnectionManager
	mf      *dashrep.Manifest
	tracker *tracker.Tracker
	tel     *telemetry
}

// NewPlayer fetches the manifest at cfg.MPDURL and wires a Tracker for its
// selected adaptation set.
func NewPlayer(ctx context.Context, cfg *Config, log *slog.Logger) (*Player, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	mf, err := dashrep.FetchManifest(ctx, cfg.MPDURL, client, log)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	connMgr := dashrep.NewHTTPConnectionManager(client)
	as, err := dashrep.NewAdaptationSet(mf, cfg.AdaptationSet, connMgr)
	if err != nil {
		return nil, fmt.Errorf("resolve adaptation set: %w", err)
	}

	tel := newTelemetry()
	adapt := adaptation.NewBandwidthLadder()
	buf := buffering.NewLiveEdge(cfg.Delay())
	syncRefs := syncref.NewStore()

	tr := tracker.NewTracker(as, adapt, buf, connMgr, nil, syncRefs,
		tracker.WithLogger(log),
		tracker.WithBufferingID(cfg.AdaptationSet))
	tr.RegisterListener(tel)
	tr.RegisterListener(tracker.ListenerFunc(func(e *tracker.Event) {
		logEvent(log, e)
	}))

	return &Player{cfg: cfg, log: log, manager: connMgr, mf: mf, tracker: tr, tel: tel}, nil
}

// Run drives the tracker until ctx is cancelled, polling for the next chunk
// at the configured interval and refreshing the live manifest as needed.
func (p *Player) Run(ctx context.Context) error {
	if !p.tracker.SetStartPosition() {
		return fmt.Errorf("could not resolve a start position")
	}

	ticker := time.NewTicker(p.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if p.mf.IsDynamic() {
				p.mf.Refresh(ctx)
			}
			chunk, ok := p.tracker.NextChunk(true)
			if !ok {
				continue
			}
			p.log.Debug("pulled chunk", "format", chunk.GetStreamFormat(), "contentType", chunk.GetContentType())
		}
	}
}

// ListenAndServeStatus starts the /healthz, /status and /metrics server, if
// cfg.StatusPort is non-zero. It blocks until ctx is cancelled.
func (p *Player) ListenAndServeStatus(ctx context.Context) error {
	if p.cfg.StatusPort == 0 {
		return nil
	}
	router := newStatusRouter(p.tel, p.log)
	srv := &http.Server{
		Addr:    net.JoinHostPort("", fmt.Sprintf("%d", p.cfg.StatusPort)),
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	p.log.Info("status server listening", "port", p.cfg.StatusPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func logEvent(log *slog.Logger, e *tracker.Event) {
	switch e.Kind {
	case tracker.EventRepresentationSwitch:
		prevID, nextID := "none", "none"
		if e.PrevRep != nil {
			prevID = e.PrevRep.GetID()
		}
		if e.NextRep != nil {
			nextID = e.NextRep.GetID()
		}
		log.Info("representation switch", "from", prevID, "to", nextID)
	case tracker.EventFormatChange:
		log.Info("format change", "format", e.Format)
	case tracker.EventSegmentGap:
		log.Warn("segment gap detected")
	case tracker.EventDiscontinuity:
		log.Warn("discontinuity", "seq", e.DiscontinuitySeq)
	case tracker.EventSegmentChange:
		log.Debug("segment change", "adaptationSet", e.AdaptationSetID, "seq", e.Sequence, "displayTime", e.DisplayTime)
	case tracker.EventPositionChange:
		log.Info("position change", "resumeTime", e.ResumeTime)
	}
}
