// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-obvious/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/costplane/costplane/app/build"
	"github.com/costplane/costplane/app/config"
	"github.com/costplane/costplane/app/config/engine"
	"github.com/costplane/costplane/app/domain/aggregate"
	"github.com/costplane/costplane/app/domain/allocate"
	"github.com/costplane/costplane/app/domain/budget"
	"github.com/costplane/costplane/app/domain/healthz"
	"github.com/costplane/costplane/app/domain/recommend"
	"github.com/costplane/costplane/app/domain/report"
	"github.com/costplane/costplane/app/handlers"
	"github.com/costplane/costplane/app/http/middleware"
	"github.com/costplane/costplane/app/logging"
	"github.com/costplane/costplane/app/storage/repo"
	"github.com/costplane/costplane/app/storage/sqlite"
	"github.com/costplane/costplane/app/types"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", configFile, "Path to the configuration file")
	flag.Parse()

	settings, err := engine.NewSettings(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load settings")
	}

	ctx := context.Background()
	logger, err := logging.NewLogger(
		logging.WithLevel(settings.Logging.Level),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create the logger")
	}
	zerolog.DefaultContextLogger = logger
	ctx = logger.WithContext(ctx)

	// print settings on debug
	if logger.GetLevel() <= zerolog.DebugLevel {
		enc, encErr := json.MarshalIndent(settings, "", "  ")
		if encErr != nil {
			logger.Fatal().Err(encErr).Msg("failed to encode the config")
		}
		fmt.Println(string(enc))
	}

	if settings.SnapshotPath == "" {
		logger.Fatal().Msg("snapshot_path is required")
	}
	snap, err := config.LoadSnapshot(settings.SnapshotPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load domain snapshot")
	}
	logger.Info().Str("version", snap.Version).Msg("Loaded domain snapshot")

	db, err := sqlite.NewSQLiteDriver(settings.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	costRecords, err := repo.NewCostRecordRepo(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize cost record store")
	}
	violations, err := repo.NewViolationRepo(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize violation store")
	}
	healthz.Register("database", func() error {
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return dbErr
		}
		return sqlDB.Ping()
	})

	aggEngine := aggregate.New(costRecords, snap.OrgCurrency)
	tracker := budget.New(aggEngine, settings.Budgets.TolerancePct)
	allocEngine := allocate.New(costRecords, snap.OrgCurrency)

	var feed types.RecommendationFeed
	if settings.RecommendationsPath != "" {
		feed = recommend.NewFileFeed(settings.RecommendationsPath)
	}
	summaries := report.NewBuilder(aggEngine, feed)

	go func() {
		HandleShutdownEvents(ctx, db)
		os.Exit(0)
	}()

	mw := []server.Middleware{
		middleware.LoggingMiddlewareWrapper,
		middleware.PromHTTPMiddleware,
	}

	apis := []server.API{
		handlers.NewQueryAPI("/v1", aggEngine, summaries),
		handlers.NewBudgetsAPI("/v1/budgets", snap, tracker),
		handlers.NewAllocationsAPI("/v1/allocations", snap, allocEngine),
		handlers.NewViolationsAPI("/v1/violations", violations),
		handlers.NewHealthzAPI("/healthz"),
		handlers.NewPromMetricsAPI("/metrics"),
	}

	if settings.Server.Profiling {
		apis = append(apis, handlers.NewProfilingAPI("/debug/pprof/"))
	}

	// Expose the service
	logger.Info().Msg("Starting service")
	server.New(build.Version()).
		WithAddress(fmt.Sprintf(":%d", settings.Server.Port)).
		WithMiddleware(mw...).
		WithAPIs(apis...).
		WithListener(server.HTTPListener()).
		Run(ctx)
	logger.Info().Msg("Service stopping")
}

func HandleShutdownEvents(ctx context.Context, db *gorm.DB) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signalChan

	log.Ctx(ctx).Info().Str("signal", sig.String()).Msg("Received signal, service stopping")
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
