// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package main implements the CostPlane operational CLI. It runs the
// ingestion cycle (sync), the governance evaluation cycle (govern), and the
// month-to-date spend report (report) against the shared cost database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/costplane/costplane/app/build"
	"github.com/costplane/costplane/app/config"
	"github.com/costplane/costplane/app/config/engine"
	"github.com/costplane/costplane/app/domain/aggregate"
	"github.com/costplane/costplane/app/domain/export"
	"github.com/costplane/costplane/app/domain/governance"
	"github.com/costplane/costplane/app/domain/ingest"
	"github.com/costplane/costplane/app/domain/ingest/awscost"
	"github.com/costplane/costplane/app/domain/ingest/staticsource"
	"github.com/costplane/costplane/app/domain/inventory"
	"github.com/costplane/costplane/app/domain/normalize"
	"github.com/costplane/costplane/app/domain/recommend"
	"github.com/costplane/costplane/app/domain/report"
	"github.com/costplane/costplane/app/logging"
	"github.com/costplane/costplane/app/storage/repo"
	"github.com/costplane/costplane/app/storage/sqlite"
	"github.com/costplane/costplane/app/types"
	"github.com/costplane/costplane/app/utils/lock"
)

const dateLayout = "2006-01-02"

// runtime is everything a subcommand needs once settings and the snapshot
// have loaded.
type runtime struct {
	settings *engine.Settings
	snapshot *config.Snapshot
	db       *gorm.DB
	records  *repo.CostRecordRepo
	logger   *zerolog.Logger
}

func newRuntime(ctx context.Context, configFile string) (*runtime, context.Context, error) {
	settings, err := engine.NewSettings(configFile)
	if err != nil {
		return nil, ctx, err
	}
	logger, err := logging.NewLogger(logging.WithLevel(settings.Logging.Level))
	if err != nil {
		return nil, ctx, err
	}
	zerolog.DefaultContextLogger = logger
	ctx = logger.WithContext(ctx)

	if settings.SnapshotPath == "" {
		return nil, ctx, fmt.Errorf("snapshot_path is required")
	}
	snap, err := config.LoadSnapshot(settings.SnapshotPath)
	if err != nil {
		return nil, ctx, err
	}

	db, err := sqlite.NewSQLiteDriver(settings.Database.Path)
	if err != nil {
		return nil, ctx, err
	}
	records, err := repo.NewCostRecordRepo(db)
	if err != nil {
		return nil, ctx, err
	}
	return &runtime{
		settings: settings,
		snapshot: snap,
		db:       db,
		records:  records,
		logger:   logger,
	}, ctx, nil
}

func (rt *runtime) close() {
	if sqlDB, err := rt.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// window resolves the --from/--to flags, defaulting to the configured
// trailing window ending today.
func (rt *runtime) window(from, to string) (types.TimeRange, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	start := end.AddDate(0, 0, -rt.settings.Sync.WindowDays)

	var err error
	if from != "" {
		if start, err = time.Parse(dateLayout, from); err != nil {
			return types.TimeRange{}, fmt.Errorf("parsing --from: %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(dateLayout, to); err != nil {
			return types.TimeRange{}, fmt.Errorf("parsing --to: %w", err)
		}
	}
	window := types.TimeRange{Start: start, End: end}
	if !window.Valid() {
		return types.TimeRange{}, fmt.Errorf("window %s..%s: %w", from, to, types.ErrInvalidPeriod)
	}
	return window, nil
}

func (rt *runtime) adapters(ctx context.Context) ([]types.Adapter, error) {
	adapters := make([]types.Adapter, 0, len(rt.settings.Sync.Sources))
	for _, src := range rt.settings.Sync.Sources {
		cloud := types.ParseCloud(src.Cloud)
		switch src.Kind {
		case engine.SourceAWSCostExplorer:
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("loading AWS config: %w", err)
			}
			adapters = append(adapters, awscost.New(cfg))
		case engine.SourceStaticFile:
			adapters = append(adapters, staticsource.New(cloud, src.Path))
		}
	}
	return adapters, nil
}

// acquireLock guards batch commits across processes when a lock path is
// configured.
func (rt *runtime) acquireLock(ctx context.Context) (*lock.FileLock, error) {
	if rt.settings.Database.LockPath == "" {
		return nil, nil
	}
	l := lock.NewFileLock(ctx, rt.settings.Database.LockPath)
	if err := l.Acquire(); err != nil {
		return nil, err
	}
	return l, nil
}

func newSyncCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch billing data from every configured source and commit it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, ctx, err := newRuntime(cmd.Context(), cmd.Flag("config").Value.String())
			if err != nil {
				return err
			}
			defer rt.close()

			window, err := rt.window(from, to)
			if err != nil {
				return err
			}

			held, err := rt.acquireLock(ctx)
			if err != nil {
				return err
			}
			if held != nil {
				defer held.Release() //nolint:errcheck // best effort on exit
			}

			adapters, err := rt.adapters(ctx)
			if err != nil {
				return err
			}
			if len(adapters) == 0 {
				return fmt.Errorf("no sources configured: %w", types.ErrInvalidConfig)
			}

			rates := rt.snapshot.Rates
			if rt.settings.RateFeedURL != "" {
				feed := config.NewRateFeedClient(rt.settings.RateFeedURL, *rt.logger)
				if fresh, feedErr := feed.Fetch(ctx); feedErr != nil {
					rt.logger.Warn().Err(feedErr).Msg("rate feed unavailable, using snapshot rates")
				} else {
					rates = rates.Merge(fresh)
				}
			}

			ctx, cancel := context.WithTimeout(ctx, rt.settings.Sync.Timeout)
			defer cancel()

			normalizer := normalize.New(rt.snapshot).WithRates(rates)
			svc := ingest.New(rt.records, normalizer, adapters...)
			if _, retryErr := svc.RetryPending(ctx); retryErr != nil {
				rt.logger.Warn().Err(retryErr).Msg("retrying pending conversions failed")
			}
			results, err := svc.Sync(ctx, window)
			for _, res := range results {
				evt := rt.logger.Info()
				if res.Err != nil {
					evt = rt.logger.Error().Err(res.Err)
				}
				evt.Str("cloud", string(res.Cloud)).
					Str("batchId", res.BatchID).
					Int("facts", res.Report.Facts).
					Int("records", res.Report.Records).
					Bool("partial", res.Partial).
					Msg("Sync cycle result")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Window start (YYYY-MM-DD, default: trailing window)")
	cmd.Flags().StringVar(&to, "to", "", "Window end, exclusive (YYYY-MM-DD)")
	return cmd
}

func newGovernCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "govern",
		Short: "Evaluate governance policies against the spend window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, ctx, err := newRuntime(cmd.Context(), cmd.Flag("config").Value.String())
			if err != nil {
				return err
			}
			defer rt.close()

			window, err := rt.window(from, to)
			if err != nil {
				return err
			}

			violations, err := repo.NewViolationRepo(rt.db)
			if err != nil {
				return err
			}
			var metadata types.MetadataProvider
			if rt.settings.InventoryPath != "" {
				metadata = inventory.NewFileProvider(rt.settings.InventoryPath)
			}

			eng := governance.New(rt.records, violations, metadata)
			result, err := eng.Evaluate(ctx, rt.snapshot.Policies, window)
			if err != nil {
				return err
			}
			rt.logger.Info().
				Int("policies", result.Policies).
				Int("disabled", result.Disabled).
				Int("created", result.Created).
				Int("existing", result.Existing).
				Msg("Governance cycle complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Window start (YYYY-MM-DD, default: trailing window)")
	cmd.Flags().StringVar(&to, "to", "", "Window end, exclusive (YYYY-MM-DD)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var asOfFlag, outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the month-to-date spend summary as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, ctx, err := newRuntime(cmd.Context(), cmd.Flag("config").Value.String())
			if err != nil {
				return err
			}
			defer rt.close()

			asOf := time.Now().UTC()
			if asOfFlag != "" {
				if asOf, err = time.Parse(dateLayout, asOfFlag); err != nil {
					return fmt.Errorf("parsing --as-of: %w", err)
				}
			}

			var feed types.RecommendationFeed
			if rt.settings.RecommendationsPath != "" {
				feed = recommend.NewFileFeed(rt.settings.RecommendationsPath)
			}
			builder := report.NewBuilder(aggregate.New(rt.records, rt.snapshot.OrgCurrency), feed)
			summary, err := builder.MonthToDate(ctx, types.Scope{}, asOf)
			if err != nil {
				return err
			}

			out := os.Stdout
			if outPath != "" && outPath != "-" {
				if out, err = os.Create(outPath); err != nil {
					return fmt.Errorf("creating %s: %w", outPath, err)
				}
				defer out.Close()
			}
			return export.WriteSummary(out, summary)
		},
	}
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "Report date (YYYY-MM-DD, default: today)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "-", "Output file (default: stdout)")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "costplane-sync",
		Short:   "CostPlane ingestion and evaluation cycles",
		Version: build.GetVersion(),
	}
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")

	rootCmd.AddCommand(newSyncCmd(), newGovernCmd(), newReportCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
