// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package allocate splits scoped spend across teams or products for
// chargeback.
//
// The one non-negotiable property is conservation: the allocated amounts sum
// to exactly the aggregate total for the same scope and window, to the minor
// unit. Spend nothing can attribute lands in the Unallocated bucket rather
// than disappearing, and any rounding residue from fixed-percentage splits is
// assigned deterministically.
package allocate

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/costplane/costplane/app/types"
)

// Store is the slice of the cost store the engine needs.
type Store interface {
	List(ctx context.Context, scope types.Scope, window types.TimeRange) ([]types.CostRecord, error)
}

// Engine applies allocation rules over a Store.
type Engine struct {
	store    Store
	currency string
}

// New creates an allocation engine reporting in the organization currency.
func New(store Store, orgCurrency string) *Engine {
	return &Engine{store: store, currency: orgCurrency}
}

// Allocate applies one rule to the spend within scope and window.
//
// Tag and account splits attribute each record by its own tag value or
// account mapping, with misses going to Unallocated. Fixed-percentage splits
// divide the total by the configured shares, rounding down and then handing
// the leftover minor units to the largest shares first (ties broken by the
// lexicographically smaller key). The result always conserves the total; a
// conservation failure is a bug and returns an error rather than a silently
// wrong chargeback.
func (e *Engine) Allocate(ctx context.Context, rule *types.AllocationRule, scope types.Scope, window types.TimeRange) (*types.Allocation, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if !window.Valid() {
		return nil, errors.Wrapf(types.ErrInvalidPeriod, "allocation window %v", window)
	}

	records, err := e.store.List(ctx, scope, window)
	if err != nil {
		return nil, errors.Wrap(err, "listing cost records")
	}

	var total int64
	for i := range records {
		total += records[i].AmountMinor
	}

	alloc := &types.Allocation{
		Rule:       rule.Name,
		Dimension:  rule.Dimension,
		Range:      window,
		Currency:   e.currency,
		TotalMinor: total,
	}

	switch rule.Method {
	case types.AllocationTagBased:
		alloc.Amounts = splitByRecord(records, func(r *types.CostRecord) string {
			if v, ok := r.Tags.Get(rule.TagKey); ok && v != "" {
				return v
			}
			return types.UnallocatedKey
		})
	case types.AllocationAccountBased:
		alloc.Amounts = splitByRecord(records, func(r *types.CostRecord) string {
			if key, ok := rule.AccountMap[r.AccountID]; ok {
				return key
			}
			return types.UnallocatedKey
		})
	case types.AllocationFixedPercentage:
		alloc.Amounts = splitFixed(total, rule.Shares)
	default:
		return nil, errors.Wrapf(types.ErrInvalidAllocationConfig, "rule %q method %q", rule.Name, rule.Method)
	}

	var allocated int64
	for _, amount := range alloc.Amounts {
		allocated += amount
	}
	if allocated != total {
		return nil, errors.Wrapf(types.ErrConsistency,
			"rule %q allocated %d of %d minor units", rule.Name, allocated, total)
	}
	return alloc, nil
}

func splitByRecord(records []types.CostRecord, keyOf func(*types.CostRecord) string) map[string]int64 {
	amounts := make(map[string]int64)
	for i := range records {
		amounts[keyOf(&records[i])] += records[i].AmountMinor
	}
	return amounts
}

// splitFixed divides total by share, flooring each portion and then
// distributing the remaining minor units one at a time, largest share first.
func splitFixed(total int64, shares map[string]float64) map[string]int64 {
	keys := lo.Keys(shares)
	// largest share first, then smaller key, so the residue assignment is
	// stable across runs
	sort.Slice(keys, func(i, j int) bool {
		if shares[keys[i]] != shares[keys[j]] {
			return shares[keys[i]] > shares[keys[j]]
		}
		return keys[i] < keys[j]
	})

	amounts := make(map[string]int64, len(keys))
	var assigned int64
	for _, key := range keys {
		portion := int64(math.Floor(float64(total) * shares[key]))
		amounts[key] = portion
		assigned += portion
	}
	for i := 0; assigned < total; i = (i + 1) % len(keys) {
		amounts[keys[i]]++
		assigned++
	}
	return amounts
}
