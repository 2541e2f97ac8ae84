// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"time"
)

// BudgetPeriod is the recurrence of a budget.
type BudgetPeriod string

const (
	BudgetMonthly   BudgetPeriod = "monthly"
	BudgetQuarterly BudgetPeriod = "quarterly"
)

// Budget is a spend target over a scope. Budgets are owned by configuration;
// the engine only reads them. Consumed percentage and forecast are derived at
// read time from the aggregation engine, never stored, so a budget edit or
// late-arriving cost data is reflected immediately.
type Budget struct {
	Name        string       `yaml:"name" json:"name"`
	Scope       Scope        `yaml:"scope" json:"scope"`
	AmountMinor int64        `yaml:"amount_minor_units" json:"amount_minor_units"`
	Currency    string       `yaml:"currency" json:"currency"`
	Period      BudgetPeriod `yaml:"period" json:"period"`
	// AnchorDate fixes where period boundaries fall; quarterly budgets count
	// quarters from this date's month.
	AnchorDate time.Time `yaml:"anchor_date" json:"anchor_date"`
	// AlertThresholdPct is where notification delivery (external) fires.
	AlertThresholdPct float64 `yaml:"alert_threshold_pct" json:"alert_threshold_pct"`
}

// Validate rejects malformed budgets at configuration load time.
func (b *Budget) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("%w: budget without a name", ErrInvalidConfig)
	}
	if b.AmountMinor <= 0 {
		return fmt.Errorf("%w: budget %q amount must be positive", ErrInvalidConfig, b.Name)
	}
	switch b.Period {
	case BudgetMonthly, BudgetQuarterly:
	default:
		return fmt.Errorf("%w: budget %q has unknown period %q", ErrInvalidConfig, b.Name, b.Period)
	}
	if b.AlertThresholdPct < 0 || b.AlertThresholdPct > 100 {
		return fmt.Errorf("%w: budget %q alert threshold %.1f out of range", ErrInvalidConfig, b.Name, b.AlertThresholdPct)
	}
	return nil
}

// CurrentPeriod returns the budget period containing asOf, as a half-open
// range anchored to AnchorDate.
func (b *Budget) CurrentPeriod(asOf time.Time) TimeRange {
	asOf = asOf.UTC()
	anchor := b.AnchorDate.UTC()
	if anchor.IsZero() {
		anchor = time.Date(asOf.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	step := 1
	if b.Period == BudgetQuarterly {
		step = 3
	}
	start := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !start.AddDate(0, step, 0).After(asOf) {
		start = start.AddDate(0, step, 0)
	}
	// asOf may predate the anchor
	for start.After(asOf) {
		start = start.AddDate(0, -step, 0)
	}
	return TimeRange{Start: start, End: start.AddDate(0, step, 0)}
}

// BudgetState classifies consumption against elapsed time.
type BudgetState string

const (
	BudgetOnTrack BudgetState = "on_track"
	BudgetAtRisk  BudgetState = "at_risk"
	BudgetOver    BudgetState = "over"
)

// BudgetStatus is the derived, read-time view of a budget.
type BudgetStatus struct {
	Budget      string      `json:"budget"`
	Period      TimeRange   `json:"period"`
	ConsumedPct float64     `json:"consumed_pct"`
	State       BudgetState `json:"state"`

	ConsumedMinor int64 `json:"consumed_minor_units"`

	// ForecastMinor is the linear run-rate extrapolation to period end, and
	// VarianceMinor its difference from the budget amount. Both are only
	// meaningful when InsufficientData is false.
	ForecastMinor int64 `json:"forecast_minor_units"`
	VarianceMinor int64 `json:"variance_minor_units"`

	// InsufficientData is set when no forecast can be made (zero days of the
	// period elapsed). Distinguishes "no data yet" from a true zero.
	InsufficientData bool `json:"insufficient_data,omitempty"`

	Currency string `json:"currency"`
}
