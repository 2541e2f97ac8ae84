// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package awscost ingests billing facts from the AWS Cost Explorer API.
package awscost

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/costplane/costplane/app/types"
)

const (
	costMetric = "UnblendedCost"
	dateLayout = "2006-01-02"
)

// CostExplorerAPI is the subset of the AWS Cost Explorer client the adapter
// uses, extracted so tests can substitute a fake.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Adapter fetches daily unblended cost grouped by linked account and service.
//
// Cost Explorer reports at (day, account, service) granularity, so facts from
// this adapter carry no resource IDs or tags; resource-level attribution
// arrives through other sources.
type Adapter struct {
	ce CostExplorerAPI
}

// New creates an adapter from an AWS config.
func New(cfg aws.Config) *Adapter {
	return &Adapter{ce: costexplorer.NewFromConfig(cfg)}
}

// NewWithAPI creates an adapter over a custom API implementation, for tests.
func NewWithAPI(api CostExplorerAPI) *Adapter {
	return &Adapter{ce: api}
}

// Cloud implements types.Adapter.
func (a *Adapter) Cloud() types.Cloud { return types.CloudAWS }

// Fetch implements types.Adapter. The window is truncated to whole days, the
// finest granularity Cost Explorer offers.
//
// Pagination failures after the first page return the facts collected so far
// marked partial: a truncated day is still reconcilable data, and the caller
// decides whether to commit it.
func (a *Adapter) Fetch(ctx context.Context, window types.TimeRange) (*types.FetchResult, error) {
	if !window.Valid() {
		return nil, errors.Wrapf(types.ErrInvalidPeriod, "fetch window %v", window)
	}

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(window.Start.UTC().Format(dateLayout)),
			End:   aws.String(window.End.UTC().Format(dateLayout)),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{costMetric},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("LINKED_ACCOUNT")},
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
		},
	}

	var facts []types.RawCostFact
	pages := 0
	for {
		out, err := a.ce.GetCostAndUsage(ctx, input)
		if err != nil {
			if pages > 0 {
				log.Ctx(ctx).Warn().Err(err).Int("pages", pages).
					Msg("cost explorer pagination truncated")
				return &types.FetchResult{Facts: facts, Partial: true},
					errors.Wrap(types.ErrPartialData, err.Error())
			}
			return nil, classify(err)
		}
		pages++
		facts = append(facts, flatten(ctx, out)...)

		if aws.ToString(out.NextPageToken) == "" {
			return &types.FetchResult{Facts: facts}, nil
		}
		input.NextPageToken = out.NextPageToken
	}
}

// flatten converts one response page into facts, one per
// (day, account, service) group.
func flatten(ctx context.Context, out *costexplorer.GetCostAndUsageOutput) []types.RawCostFact {
	var facts []types.RawCostFact
	for _, byTime := range out.ResultsByTime {
		start, err := time.Parse(dateLayout, aws.ToString(byTime.TimePeriod.Start))
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("skipping result with unparseable period")
			continue
		}
		end, err := time.Parse(dateLayout, aws.ToString(byTime.TimePeriod.End))
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("skipping result with unparseable period")
			continue
		}
		for _, group := range byTime.Groups {
			if len(group.Keys) < 2 {
				continue
			}
			metric, ok := group.Metrics[costMetric]
			if !ok {
				continue
			}
			currency := aws.ToString(metric.Unit)
			amount, err := parseMinor(aws.ToString(metric.Amount), currency)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).
					Str("account", group.Keys[0]).
					Str("service", group.Keys[1]).
					Msg("skipping group with unparseable amount")
				continue
			}
			facts = append(facts, types.RawCostFact{
				Provider:        "aws",
				AccountID:       group.Keys[0],
				ProviderService: group.Keys[1],
				PeriodStart:     start,
				PeriodEnd:       end,
				AmountMinor:     amount,
				Currency:        currency,
			})
		}
	}
	return facts
}

// parseMinor converts Cost Explorer's decimal amount string into minor units
// of its currency.
func parseMinor(amount, currency string) (int64, error) {
	major, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "amount %q", amount)
	}
	return int64(math.Round(major * float64(types.MinorPerMajor(currency)))), nil
}

// classify maps AWS API failures onto the adapter error contract.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return errors.Wrap(types.ErrAuth, apiErr.ErrorMessage())
		}
	}
	return errors.Wrap(types.ErrSourceUnavailable, err.Error())
}
