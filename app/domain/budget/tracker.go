// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package budget derives budget consumption, state, and run-rate forecasts
// from live aggregation results. Nothing here is persisted: a budget edit or
// a late batch changes the answer on the next evaluation.
package budget

import (
	"context"
	"math"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/costplane/costplane/app/types"
)

// Totaler is the slice of the aggregation engine the tracker needs.
type Totaler interface {
	Total(ctx context.Context, scope types.Scope, window types.TimeRange) (int64, bool, error)
}

// Tracker evaluates budgets against actual spend.
type Tracker struct {
	totals Totaler
	// tolerancePct is how far consumption may run ahead of elapsed time
	// before a budget flips to at-risk.
	tolerancePct float64
	now          func() time.Time
}

// New creates a Tracker. tolerancePct is in percentage points.
func New(totals Totaler, tolerancePct float64) *Tracker {
	return &Tracker{totals: totals, tolerancePct: tolerancePct, now: time.Now}
}

// WithClock overrides the evaluation time source, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Evaluate computes the status of one budget for the period containing asOf
// (zero asOf means now).
//
// The forecast is a linear run-rate: consumed so far scaled to the full
// period. Before any of the period has elapsed there is no run rate, and the
// status carries InsufficientData instead of a fabricated zero forecast.
func (t *Tracker) Evaluate(ctx context.Context, b *types.Budget, asOf time.Time) (*types.BudgetStatus, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = t.now()
	}
	asOf = asOf.UTC()
	period := b.CurrentPeriod(asOf)

	consumed, _, err := t.totals.Total(ctx, b.Scope, period)
	if err != nil {
		return nil, errors.Wrapf(err, "totaling spend for budget %q", b.Name)
	}

	status := &types.BudgetStatus{
		Budget:        b.Name,
		Period:        period,
		ConsumedMinor: consumed,
		ConsumedPct:   float64(consumed) / float64(b.AmountMinor) * 100,
		Currency:      b.Currency,
	}

	elapsed := asOf.Sub(period.Start)
	if elapsed <= 0 {
		status.InsufficientData = true
		status.State = types.BudgetOnTrack
		return status, nil
	}
	elapsedPct := math.Min(float64(elapsed)/float64(period.Duration()), 1) * 100

	forecast, err := safecast.ToInt64(math.Round(float64(consumed) / elapsedPct * 100))
	if err != nil {
		return nil, errors.Wrapf(err, "forecast overflow for budget %q", b.Name)
	}
	status.ForecastMinor = forecast
	status.VarianceMinor = forecast - b.AmountMinor
	status.State = t.classify(status.ConsumedPct, elapsedPct)

	if status.State != types.BudgetOnTrack {
		log.Ctx(ctx).Warn().
			Str("budget", b.Name).
			Str("state", string(status.State)).
			Float64("consumed_pct", status.ConsumedPct).
			Float64("elapsed_pct", elapsedPct).
			Msg("budget off track")
	}
	return status, nil
}

// EvaluateAll evaluates every budget, in order. A single failing budget fails
// the call: budget math errors mean bad configuration or a broken store, not
// something to paper over.
func (t *Tracker) EvaluateAll(ctx context.Context, budgets []types.Budget, asOf time.Time) ([]types.BudgetStatus, error) {
	statuses := make([]types.BudgetStatus, 0, len(budgets))
	for i := range budgets {
		status, err := t.Evaluate(ctx, &budgets[i], asOf)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

// classify maps consumption vs elapsed time to a state. Fully consumed is
// over regardless of pace; ahead of pace beyond the tolerance is at risk.
func (t *Tracker) classify(consumedPct, elapsedPct float64) types.BudgetState {
	switch {
	case consumedPct >= 100:
		return types.BudgetOver
	case consumedPct > elapsedPct+t.tolerancePct:
		return types.BudgetAtRisk
	default:
		return types.BudgetOnTrack
	}
}
