// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	"github.com/dash-segtrack/segtrack/pkg/logging"
)

const (
	defaultStatusPort = 8889
	defaultDelayMS    = 6000
	defaultPollMS     = 1000
	envPrefix         = "SEGTRACKPLAY_"
)

// Config holds everything segtrackplay needs to run a tracking session
// against a single DASH adaptation set.
type Config struct {
	MPDURL        string `json:"mpdurl"`
	AdaptationSet string `json:"adaptationset"`
	LogFormat     string `json:"logformat"`
	LogLevel      string `json:"loglevel"`
	StatusPort    int    `json:"statusport"`
	DelayMS       int    `json:"delayms"`
	PollMS        int    `json:"pollms"`
}

var DefaultConfig = Config{
	LogFormat:     logging.LogText,
	LogLevel:      "info",
	AdaptationSet: "",
	StatusPort:    defaultStatusPort,
	DelayMS:       defaultDelayMS,
	PollMS:        defaultPollMS,
}

// Delay is the configured live-edge presentation delay.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// PollInterval is how often the player pulls the next chunk while idle.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollMS) * time.Millisecond
}

// LoadConfig loads defaults, an optional JSON config file, command-line flags,
// and finally environment variables, in increasing order of precedence.
func LoadConfig(args []string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig, "json"), nil); err != nil {
		return nil, err
	}

	f := pflag.NewFlagSet("segtrackplay", pflag.ContinueOnError)
	f.SortFlags = false
	f.Usage = func() {
		parts := strings.Split(args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, "Usage: %s [options] mpdURL\n\n", name)
		f.PrintDefaults()
	}

	cfgFile := f.String("cfg", "", "path to a JSON config file")
	f.String("adaptationset", k.String("adaptationset"), "id of the adaptation set to track (first one if empty)")
	lf := strings.Join(logging.LogFormats, ", ")
	f.String("logformat", k.String("logformat"), fmt.Sprintf("log format [%s]", lf))
	f.String("loglevel", k.String("loglevel"), "initial log level")
	f.Int("statusport", k.Int("statusport"), "HTTP port for /healthz and /metrics (0 disables)")
	f.Int("delayms", k.Int("delayms"), "live-edge presentation delay in milliseconds")
	f.Int("pollms", k.Int("pollms"), "interval between chunk pulls in milliseconds")

	if err := f.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("command line parse: %w", err)
	}

	if *cfgFile != "" {
		if err := k.Load(file.Provider(*cfgFile), json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("parsing cli: %w", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, err
	}

	if len(f.Args()) != 1 {
		f.Usage()
		return nil, fmt.Errorf("exactly one mpdURL argument is required")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.MPDURL = f.Args()[0]
	return &cfg, nil
}
