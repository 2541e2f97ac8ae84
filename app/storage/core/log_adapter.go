// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/costplane/costplane/app/types"
)

// slowQueryThreshold is where queries get promoted to warn level.
const slowQueryThreshold = 200 * time.Millisecond

// ZeroLogAdapter bridges GORM's logger interface into zerolog so database
// logs share the application's structured output and the context's logger.
type ZeroLogAdapter struct{}

// LogMode implements gormlogger.Interface. Level filtering is delegated to
// zerolog's global level, so the adapter itself is returned unchanged.
func (a *ZeroLogAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface { return a }

func (a *ZeroLogAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	log.Ctx(ctx).Info().Msgf(msg, args...)
}

func (a *ZeroLogAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	log.Ctx(ctx).Warn().Msgf(msg, args...)
}

func (a *ZeroLogAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	log.Ctx(ctx).Error().Msgf(msg, args...)
}

// Trace logs completed statements at debug level, promoting slow queries to
// warn and failures to error. "record not found" is expected control flow and
// stays at debug.
func (a *ZeroLogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	evt := log.Ctx(ctx).Debug()
	switch {
	case err != nil && !errors.Is(TranslateError(err), types.ErrNotFound):
		evt = log.Ctx(ctx).Error().Err(err)
	case elapsed > slowQueryThreshold:
		evt = log.Ctx(ctx).Warn()
	}
	evt.Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("gorm query")
}
