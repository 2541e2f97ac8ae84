// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package export renders query results as CSV for finance tooling.
//
// Amounts are written in major units ("123.45") with the currency in its own
// column, and every writer emits rows in the same deterministic order as its
// source so repeated exports diff cleanly.
package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/costplane/costplane/app/domain/report"
	"github.com/costplane/costplane/app/types"
)

const timeLayout = "2006-01-02"

// WriteAggregate renders one aggregation result.
func WriteAggregate(w io.Writer, result *types.AggregateResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"group_by", "key", "amount", "currency", "pct_of_total", "trend_amount"}); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, row := range result.Rows {
		trend := ""
		if row.TrendMinor != nil {
			trend = types.MajorString(*row.TrendMinor, row.Currency)
		}
		record := []string{
			string(result.GroupBy),
			row.Key,
			types.MajorString(row.AmountMinor, row.Currency),
			row.Currency,
			strconv.FormatFloat(row.PctOfTotal, 'f', 2, 64),
			trend,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing row %q", row.Key)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing aggregate csv")
}

// WriteBudgets renders budget statuses.
func WriteBudgets(w io.Writer, statuses []types.BudgetStatus) error {
	cw := csv.NewWriter(w)
	header := []string{
		"budget", "period_start", "period_end", "state",
		"consumed", "consumed_pct", "forecast", "variance", "currency",
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i := range statuses {
		s := &statuses[i]
		forecast, variance := "", ""
		if !s.InsufficientData {
			forecast = types.MajorString(s.ForecastMinor, s.Currency)
			variance = types.MajorString(s.VarianceMinor, s.Currency)
		}
		record := []string{
			s.Budget,
			s.Period.Start.UTC().Format(timeLayout),
			s.Period.End.UTC().Format(timeLayout),
			string(s.State),
			types.MajorString(s.ConsumedMinor, s.Currency),
			strconv.FormatFloat(s.ConsumedPct, 'f', 2, 64),
			forecast,
			variance,
			s.Currency,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing budget %q", s.Budget)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing budget csv")
}

// WriteAllocation renders one chargeback split, dimension keys ascending with
// Unallocated pinned last.
func WriteAllocation(w io.Writer, alloc *types.Allocation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rule", "dimension", "key", "amount", "currency"}); err != nil {
		return errors.Wrap(err, "writing header")
	}

	keys := lo.Keys(alloc.Amounts)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == types.UnallocatedKey || keys[j] == types.UnallocatedKey {
			return keys[j] == types.UnallocatedKey
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		record := []string{
			alloc.Rule,
			string(alloc.Dimension),
			key,
			types.MajorString(alloc.Amounts[key], alloc.Currency),
			alloc.Currency,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing key %q", key)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing allocation csv")
}

// WriteSummary renders the month-to-date overview as a flat key/value sheet
// followed by the service table.
func WriteSummary(w io.Writer, summary *report.Summary) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"as_of", summary.AsOf.UTC().Format(time.RFC3339)},
		{"from", summary.Range.Start.UTC().Format(timeLayout)},
		{"to", summary.Range.End.UTC().Format(timeLayout)},
		{"total", types.MajorString(summary.TotalMinor, summary.Currency)},
		{"currency", summary.Currency},
	}
	if summary.PriorMinor != nil {
		rows = append(rows, []string{"prior_month_to_date", types.MajorString(*summary.PriorMinor, summary.Currency)})
	}
	if summary.MoMChangePct != nil {
		rows = append(rows, []string{"mom_change_pct", strconv.FormatFloat(*summary.MoMChangePct, 'f', 2, 64)})
	}
	if summary.EstimatedSavingsMinor != 0 {
		rows = append(rows, []string{"estimated_savings", types.MajorString(summary.EstimatedSavingsMinor, summary.Currency)})
	}
	rows = append(rows, []string{})
	rows = append(rows, []string{"service", "amount", "pct_of_total"})
	for _, row := range summary.TopServices {
		rows = append(rows, []string{
			row.Key,
			types.MajorString(row.AmountMinor, row.Currency),
			strconv.FormatFloat(row.PctOfTotal, 'f', 2, 64),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "writing summary csv")
	}
	return nil
}
