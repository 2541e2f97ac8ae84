// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package engine holds the process-level settings for the CostPlane binaries.
//
// Settings load from a YAML file with environment-variable overrides
// (cleanenv), with env taking precedence. Domain configuration (catalogs,
// rates, budgets, policies) lives in the versioned Snapshot (app/config),
// not here.
package engine

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"

	"github.com/costplane/costplane/app/types"
)

const (
	// DefaultServerPort is the query-surface HTTP port.
	DefaultServerPort = 8080

	// DefaultSyncWindowDays is how far back a sync reaches when no explicit
	// window is given. Providers routinely restate recent days, so the
	// window re-covers them and the batch replacement rule supersedes the
	// stale records.
	DefaultSyncWindowDays = 32

	// DefaultBudgetTolerancePct is the slack on top of the elapsed-time
	// expectation before a budget flips from on-track to at-risk.
	DefaultBudgetTolerancePct = 5.0
)

// Settings is the complete process configuration for the sync and API
// binaries.
type Settings struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Sync     Sync     `yaml:"sync"`
	Budgets  Budgets  `yaml:"budgets"`
	Logging  Logging  `yaml:"logging"`

	// SnapshotPath locates the domain configuration snapshot YAML.
	SnapshotPath string `yaml:"snapshot_path" env:"COSTPLANE_SNAPSHOT" env-description:"path to the domain configuration snapshot"`

	// RateFeedURL optionally points at an HTTP currency-rate feed merged
	// over the snapshot's static table before normalization.
	RateFeedURL string `yaml:"rate_feed_url" env:"COSTPLANE_RATE_FEED_URL" env-description:"optional currency rate feed"`

	// InventoryPath locates the resource-metadata export consumed by
	// governance evaluation. Empty means no inventory is available and
	// attribute policies flag nothing.
	InventoryPath string `yaml:"inventory_path" env:"COSTPLANE_INVENTORY" env-description:"resource metadata export for governance"`

	// RecommendationsPath locates the optimization scanners' feed rolled
	// into the spend summary. Empty omits estimated savings.
	RecommendationsPath string `yaml:"recommendations_path" env:"COSTPLANE_RECOMMENDATIONS" env-description:"optimization recommendations feed"`
}

// Server configures the query-surface HTTP server.
type Server struct {
	Port      int  `yaml:"port" env:"COSTPLANE_PORT" env-default:"8080" env-description:"HTTP listen port"`
	Profiling bool `yaml:"profiling" env:"COSTPLANE_PROFILING" env-default:"false" env-description:"expose pprof endpoints"`
}

// Database configures the canonical cost store.
type Database struct {
	// Path is the SQLite database file; ":memory:" keeps everything in RAM.
	Path string `yaml:"path" env:"COSTPLANE_DB" env-default:"costplane.sqlite" env-description:"SQLite database path"`
	// LockPath guards batch commits across processes (sync CLI vs API
	// server) with an advisory file lock. Empty disables locking.
	LockPath string `yaml:"lock_path" env:"COSTPLANE_DB_LOCK" env-description:"advisory lock file for batch commits"`
}

// Sync configures ingestion runs.
type Sync struct {
	WindowDays int           `yaml:"window_days" env:"COSTPLANE_SYNC_WINDOW_DAYS" env-default:"32" env-description:"how many days back a sync fetches"`
	Timeout    time.Duration `yaml:"timeout" env:"COSTPLANE_SYNC_TIMEOUT" env-default:"10m" env-description:"per-sync deadline"`
	Sources    []Source      `yaml:"sources"`
}

// Source kinds understood by the sync binary.
const (
	SourceAWSCostExplorer = "aws-cost-explorer"
	SourceStaticFile      = "static"
)

// Source declares one ingestion adapter: which cloud it serves and how it is
// backed. Static sources read a YAML export from Path.
type Source struct {
	Cloud string `yaml:"cloud"`
	Kind  string `yaml:"kind"`
	Path  string `yaml:"path,omitempty"`
}

// Budgets configures budget evaluation.
type Budgets struct {
	TolerancePct float64 `yaml:"tolerance_pct" env:"COSTPLANE_BUDGET_TOLERANCE" env-default:"5.0" env-description:"slack over elapsed-time expectation before at-risk"`
}

// Logging configures zerolog output.
type Logging struct {
	Level string `yaml:"level" env:"COSTPLANE_LOG_LEVEL" env-default:"info" env-description:"trace|debug|info|warn|error"`
}

// NewSettings loads settings from the given YAML file (optional) plus the
// environment, then validates them.
func NewSettings(configFile string) (*Settings, error) {
	var s Settings
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, errors.Wrapf(err, "config file %s", configFile)
		}
		if err := cleanenv.ReadConfig(configFile, &s); err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
	} else if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, errors.Wrap(err, "reading environment")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects unusable settings before any component starts.
func (s *Settings) Validate() error {
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return errors.Wrapf(types.ErrInvalidConfig, "server port %d", s.Server.Port)
	}
	if s.Database.Path == "" {
		return errors.Wrap(types.ErrInvalidConfig, "database path is required")
	}
	if s.Sync.WindowDays <= 0 {
		s.Sync.WindowDays = DefaultSyncWindowDays
	}
	if s.Budgets.TolerancePct < 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "budget tolerance %.1f", s.Budgets.TolerancePct)
	}
	for i := range s.Sync.Sources {
		src := &s.Sync.Sources[i]
		if types.ParseCloud(src.Cloud) == types.CloudOther {
			return errors.Wrapf(types.ErrInvalidConfig, "source %d: unknown cloud %q", i, src.Cloud)
		}
		switch src.Kind {
		case SourceAWSCostExplorer:
		case SourceStaticFile:
			if src.Path == "" {
				return errors.Wrapf(types.ErrInvalidConfig, "source %d: static source needs a path", i)
			}
		default:
			return errors.Wrapf(types.ErrInvalidConfig, "source %d: unknown kind %q", i, src.Kind)
		}
	}
	if s.Database.Path != ":memory:" {
		if dir := filepath.Dir(s.Database.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(err, "creating database directory")
			}
		}
	}
	return nil
}
