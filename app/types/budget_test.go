// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/types"
)

func TestUnit_Types_Budget_CurrentPeriod_Monthly(t *testing.T) {
	b := types.Budget{
		Name:        "infra",
		AmountMinor: 100_000,
		Currency:    "USD",
		Period:      types.BudgetMonthly,
		AnchorDate:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	p := b.CurrentPeriod(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), p.End)
}

func TestUnit_Types_Budget_CurrentPeriod_QuarterlyAnchored(t *testing.T) {
	b := types.Budget{
		Name:        "ml",
		AmountMinor: 100_000,
		Currency:    "USD",
		Period:      types.BudgetQuarterly,
		AnchorDate:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	// quarters run Feb-May-Aug-Nov because of the anchor
	p := b.CurrentPeriod(time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), p.End)
}

func TestUnit_Types_Budget_CurrentPeriod_BeforeAnchor(t *testing.T) {
	b := types.Budget{
		Name:       "early",
		Period:     types.BudgetMonthly,
		AnchorDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	p := b.CurrentPeriod(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.True(t, p.Contains(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)))
}

func TestUnit_Types_Budget_Validate(t *testing.T) {
	good := types.Budget{Name: "x", AmountMinor: 1, Period: types.BudgetMonthly, AlertThresholdPct: 80}
	require.NoError(t, good.Validate())

	for name, b := range map[string]types.Budget{
		"no name":       {AmountMinor: 1, Period: types.BudgetMonthly},
		"zero amount":   {Name: "x", Period: types.BudgetMonthly},
		"bad period":    {Name: "x", AmountMinor: 1, Period: "weekly"},
		"bad threshold": {Name: "x", AmountMinor: 1, Period: types.BudgetMonthly, AlertThresholdPct: 150},
	} {
		err := b.Validate()
		assert.ErrorIs(t, err, types.ErrInvalidConfig, name)
	}
}

func TestUnit_Types_TimeRange_Previous(t *testing.T) {
	tr := types.TimeRange{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	prev := tr.Previous()
	assert.Equal(t, tr.Start, prev.End)
	assert.Equal(t, tr.Duration(), prev.Duration())
}
