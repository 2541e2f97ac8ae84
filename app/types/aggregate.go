// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

// GroupBy selects the grouping dimension of an aggregation query.
type GroupBy string

const (
	GroupByCloud      GroupBy = "cloud"
	GroupByAccount    GroupBy = "account"
	GroupByProject    GroupBy = "project"
	GroupByTeamTag    GroupBy = "team_tag"
	GroupByProductTag GroupBy = "product_tag"
	GroupByService    GroupBy = "service"
	GroupByDay        GroupBy = "day"
	GroupByMonth      GroupBy = "month"
)

// ValidGroupBy reports whether g is one of the supported dimensions.
func ValidGroupBy(g GroupBy) bool {
	switch g {
	case GroupByCloud, GroupByAccount, GroupByProject, GroupByTeamTag,
		GroupByProductTag, GroupByService, GroupByDay, GroupByMonth:
		return true
	}
	return false
}

// GroupedTotal is one row of an aggregation result.
type GroupedTotal struct {
	// Key is the group value: a cloud, an account ID, a service name, a tag
	// value, or a formatted day/month.
	Key string `json:"key"`

	AmountMinor int64  `json:"amount_minor_units"`
	Currency    string `json:"currency"`

	// PctOfTotal is this row's share of the filtered total (not the global
	// total), in percent.
	PctOfTotal float64 `json:"pct_of_total"`

	// TrendMinor is the same group's amount over the immediately preceding
	// equal-length period. Nil means no comparison is available, which is
	// distinct from a prior-period zero.
	TrendMinor *int64 `json:"trend_minor_units,omitempty"`
}

// AggregateResult is the ordered output of one aggregation query. Rows are
// sorted descending by amount, ties broken ascending by key, so identical
// inputs always produce byte-identical output.
type AggregateResult struct {
	GroupBy  GroupBy   `json:"group_by"`
	Range    TimeRange `json:"range"`
	Currency string    `json:"currency"`

	Rows       []GroupedTotal `json:"rows"`
	TotalMinor int64          `json:"total_minor_units"`

	// InsufficientData is set when the scope matched no records at all;
	// TotalMinor is then a marker zero, not a measured zero.
	InsufficientData bool `json:"insufficient_data,omitempty"`
}
