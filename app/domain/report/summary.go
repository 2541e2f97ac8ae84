// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package report composes the month-to-date overview out of the aggregation
// engine, budget tracker, and recommendation feed. It derives everything at
// read time and owns no state of its own.
package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/costplane/costplane/app/domain/aggregate"
	"github.com/costplane/costplane/app/types"
)

// topServiceCount caps the overview's service table; the full breakdown
// stays a query away.
const topServiceCount = 10

// Summary is the month-to-date overview.
type Summary struct {
	AsOf     time.Time       `json:"as_of"`
	Range    types.TimeRange `json:"range"`
	Currency string          `json:"currency"`

	TotalMinor int64 `json:"total_minor_units"`

	// PriorMinor is spend over the same number of elapsed days last month;
	// MoMChangePct compares against it. Both are omitted when last month has
	// no data.
	PriorMinor   *int64   `json:"prior_minor_units,omitempty"`
	MoMChangePct *float64 `json:"mom_change_pct,omitempty"`

	TopServices []types.GroupedTotal `json:"top_services"`
	ByCloud     []types.GroupedTotal `json:"by_cloud"`

	// EstimatedSavingsMinor totals the optimization scanners' open
	// recommendations, zero when no feed is wired.
	EstimatedSavingsMinor int64 `json:"estimated_savings_minor_units"`

	InsufficientData bool `json:"insufficient_data,omitempty"`
}

// Builder assembles summaries.
type Builder struct {
	engine *aggregate.Engine
	// feed may be nil when no scanners are wired.
	feed types.RecommendationFeed
}

// NewBuilder creates a Builder. feed may be nil.
func NewBuilder(engine *aggregate.Engine, feed types.RecommendationFeed) *Builder {
	return &Builder{engine: engine, feed: feed}
}

// MonthToDate builds the overview for the calendar month containing asOf,
// covering spend from the month's start up to (excluding) asOf's day.
func (b *Builder) MonthToDate(ctx context.Context, scope types.Scope, asOf time.Time) (*Summary, error) {
	asOf = asOf.UTC()
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	window := types.TimeRange{Start: monthStart, End: today}
	if !window.Valid() {
		// first of the month before any spend lands
		window.End = monthStart.AddDate(0, 0, 1)
	}

	byService, err := b.engine.Aggregate(ctx, aggregate.Query{
		Scope:   scope,
		GroupBy: types.GroupByService,
		Range:   window,
	})
	if err != nil {
		return nil, errors.Wrap(err, "aggregating by service")
	}

	byCloud, err := b.engine.Aggregate(ctx, aggregate.Query{
		Scope:   scope,
		GroupBy: types.GroupByCloud,
		Range:   window,
	})
	if err != nil {
		return nil, errors.Wrap(err, "aggregating by cloud")
	}

	summary := &Summary{
		AsOf:             asOf,
		Range:            window,
		Currency:         byService.Currency,
		TotalMinor:       byService.TotalMinor,
		TopServices:      byService.Rows,
		ByCloud:          byCloud.Rows,
		InsufficientData: byService.InsufficientData,
	}
	if len(summary.TopServices) > topServiceCount {
		summary.TopServices = summary.TopServices[:topServiceCount]
	}

	if err := b.addPriorComparison(ctx, summary, scope, window); err != nil {
		return nil, err
	}
	b.addSavings(ctx, summary)
	return summary, nil
}

// addPriorComparison measures the same elapsed span of the previous month.
// A shorter previous month clamps to its own end.
func (b *Builder) addPriorComparison(ctx context.Context, summary *Summary, scope types.Scope, window types.TimeRange) error {
	priorStart := window.Start.AddDate(0, -1, 0)
	priorEnd := priorStart.Add(window.Duration())
	if monthEnd := priorStart.AddDate(0, 1, 0); priorEnd.After(monthEnd) {
		priorEnd = monthEnd
	}

	prior, hasData, err := b.engine.Total(ctx, scope, types.TimeRange{Start: priorStart, End: priorEnd})
	if err != nil {
		return errors.Wrap(err, "totaling prior month")
	}
	if !hasData {
		return nil
	}
	summary.PriorMinor = &prior
	if prior != 0 {
		pct := (float64(summary.TotalMinor) - float64(prior)) / float64(prior) * 100
		summary.MoMChangePct = &pct
	}
	return nil
}

// addSavings folds in the recommendation feed, tolerating its absence or
// failure: a broken scanner must not take down the overview.
func (b *Builder) addSavings(ctx context.Context, summary *Summary) {
	if b.feed == nil {
		return
	}
	recs, err := b.feed.Recommendations()
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("recommendation feed unavailable, omitting savings")
		return
	}
	for i := range recs {
		summary.EstimatedSavingsMinor += recs[i].EstimatedSavingMinor
	}
}
