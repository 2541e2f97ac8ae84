// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package aggregate implements the query layer over the canonical cost
// store: grouped, filtered spend summaries with share-of-total and
// prior-period trend.
//
// The engine is pure and re-entrant. It holds no cached derived state, so
// identical queries against an unchanged store always return identical
// ordered output; budgets, chargeback, and the overview all call it live
// and must agree with each other.
package aggregate

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/costplane/costplane/app/types"
)

// Store is the slice of the cost store the engine needs.
type Store interface {
	List(ctx context.Context, scope types.Scope, window types.TimeRange) ([]types.CostRecord, error)
}

// Engine computes aggregations over a Store.
type Engine struct {
	store    Store
	currency string
}

// New creates an aggregation engine reporting in the organization currency.
func New(store Store, orgCurrency string) *Engine {
	return &Engine{store: store, currency: orgCurrency}
}

// Query is one aggregation request.
type Query struct {
	Scope   types.Scope     `json:"scope"`
	GroupBy types.GroupBy   `json:"group_by"`
	Range   types.TimeRange `json:"range"`
}

// Aggregate computes the grouped totals for the query.
//
// Rows are ordered descending by amount with the group key ascending as the
// tie-break. Each row's share is computed against the filtered total, not the
// global one, and its trend is the same group's amount over the immediately
// preceding equal-length period, or nil when that period holds no data at all,
// which is distinct from a measured zero.
func (e *Engine) Aggregate(ctx context.Context, q Query) (*types.AggregateResult, error) {
	if !types.ValidGroupBy(q.GroupBy) {
		return nil, errors.Wrapf(types.ErrInvalidData, "unknown group_by %q", q.GroupBy)
	}
	if !q.Range.Valid() {
		return nil, errors.Wrapf(types.ErrInvalidPeriod, "aggregation range %v", q.Range)
	}

	records, err := e.store.List(ctx, q.Scope, q.Range)
	if err != nil {
		return nil, errors.Wrap(err, "listing cost records")
	}

	result := &types.AggregateResult{
		GroupBy:  q.GroupBy,
		Range:    q.Range,
		Currency: e.currency,
	}
	if len(records) == 0 {
		result.InsufficientData = true
		result.Rows = []types.GroupedTotal{}
		return result, nil
	}

	sums := sumByKey(records, q.GroupBy)
	for _, amount := range sums {
		result.TotalMinor += amount
	}

	// trend compares against the immediately preceding equal-length period
	prev, err := e.store.List(ctx, q.Scope, q.Range.Previous())
	if err != nil {
		return nil, errors.Wrap(err, "listing prior-period records")
	}
	var prevSums map[string]int64
	if len(prev) > 0 {
		prevSums = sumByKey(prev, q.GroupBy)
	}

	keys := lo.Keys(sums)
	sort.Strings(keys)

	result.Rows = make([]types.GroupedTotal, 0, len(keys))
	for _, key := range keys {
		row := types.GroupedTotal{
			Key:         key,
			AmountMinor: sums[key],
			Currency:    e.currency,
			PctOfTotal:  pctOf(sums[key], result.TotalMinor),
		}
		if prevSums != nil {
			trend := prevSums[key] // zero when the group is new
			row.TrendMinor = &trend
		}
		result.Rows = append(result.Rows, row)
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		if result.Rows[i].AmountMinor != result.Rows[j].AmountMinor {
			return result.Rows[i].AmountMinor > result.Rows[j].AmountMinor
		}
		return result.Rows[i].Key < result.Rows[j].Key
	})
	return result, nil
}

// Total is a convenience for callers that only need the scoped sum (budget
// consumption, allocation conservation checks).
func (e *Engine) Total(ctx context.Context, scope types.Scope, window types.TimeRange) (int64, bool, error) {
	records, err := e.store.List(ctx, scope, window)
	if err != nil {
		return 0, false, errors.Wrap(err, "listing cost records")
	}
	var total int64
	for i := range records {
		total += records[i].AmountMinor
	}
	return total, len(records) > 0, nil
}

func sumByKey(records []types.CostRecord, groupBy types.GroupBy) map[string]int64 {
	sums := make(map[string]int64)
	for i := range records {
		sums[groupKey(&records[i], groupBy)] += records[i].AmountMinor
	}
	return sums
}

func groupKey(r *types.CostRecord, groupBy types.GroupBy) string {
	switch groupBy {
	case types.GroupByCloud:
		return string(r.Cloud)
	case types.GroupByAccount:
		return r.AccountID
	case types.GroupByProject:
		if r.ProjectID == "" {
			return types.UnallocatedKey
		}
		return r.ProjectID
	case types.GroupByTeamTag:
		return tagOr(r, "team")
	case types.GroupByProductTag:
		return tagOr(r, "product")
	case types.GroupByService:
		return r.Service
	case types.GroupByDay:
		return r.PeriodStart.UTC().Format("2006-01-02")
	case types.GroupByMonth:
		return r.PeriodStart.UTC().Format("2006-01")
	}
	return types.UnallocatedKey
}

func tagOr(r *types.CostRecord, key string) string {
	if v, ok := r.Tags.Get(key); ok && v != "" {
		return v
	}
	return types.UnallocatedKey
}

func pctOf(amount, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(amount) / float64(total) * 100
}
