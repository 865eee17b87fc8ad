// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dash-segtrack/segtrack/cmd/segtrackplay/app"
	"github.com/dash-segtrack/segtrack/internal"
	"github.com/dash-segtrack/segtrack/pkg/logging"
)

func main() {
	cfg, err := app.LoadConfig(os.Args)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(2)
	}

	if err := logging.InitSlog(cfg.LogLevel, cfg.LogFormat); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	log := slog.Default()
	log.Info("starting", "version", internal.GetVersion(), "mpdURL", cfg.MPDURL)

	ctx, cancel := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	go func() {
		<-signalChan
		cancel()
	}()

	player, err := app.NewPlayer(ctx, cfg, log)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	go func() {
		if err := player.ListenAndServeStatus(ctx); err != nil {
			log.Error("status server failed", "error", err)
		}
	}()

	if err := player.Run(ctx); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
