// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package awscost_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/domain/ingest/awscost"
	"github.com/costplane/costplane/app/types"
)

type fakeCostExplorer struct {
	pages []*costexplorer.GetCostAndUsageOutput
	errAt int // fail on this call number (1-based), 0 means never
	calls int
	err   error
}

func (f *fakeCostExplorer) GetCostAndUsage(_ context.Context, _ *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	f.calls++
	if f.errAt == f.calls {
		return nil, f.err
	}
	return f.pages[f.calls-1], nil
}

func page(next string, groups ...cetypes.Group) *costexplorer.GetCostAndUsageOutput {
	out := &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []cetypes.ResultByTime{{
			TimePeriod: &cetypes.DateInterval{
				Start: aws.String("2026-03-01"),
				End:   aws.String("2026-03-02"),
			},
			Groups: groups,
		}},
	}
	if next != "" {
		out.NextPageToken = aws.String(next)
	}
	return out
}

func group(account, service, amount string) cetypes.Group {
	return cetypes.Group{
		Keys: []string{account, service},
		Metrics: map[string]cetypes.MetricValue{
			"UnblendedCost": {Amount: aws.String(amount), Unit: aws.String("USD")},
		},
	}
}

var window = types.TimeRange{
	Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
}

func TestUnit_Ingest_AWSCost_FetchFlattensGroups(t *testing.T) {
	fake := &fakeCostExplorer{pages: []*costexplorer.GetCostAndUsageOutput{
		page("", group("111", "Amazon Elastic Compute Cloud - Compute", "50.00"),
			group("111", "Amazon Simple Storage Service", "20.556")),
	}}
	adapter := awscost.NewWithAPI(fake)

	result, err := adapter.Fetch(t.Context(), window)
	require.NoError(t, err)
	require.Len(t, result.Facts, 2)
	assert.False(t, result.Partial)

	f := result.Facts[0]
	assert.Equal(t, "aws", f.Provider)
	assert.Equal(t, "111", f.AccountID)
	assert.Equal(t, "Amazon Elastic Compute Cloud - Compute", f.ProviderService)
	assert.Equal(t, int64(5000), f.AmountMinor)
	assert.Equal(t, "USD", f.Currency)
	assert.Equal(t, window.Start, f.PeriodStart)
	assert.Equal(t, window.End, f.PeriodEnd)

	assert.Equal(t, int64(2056), result.Facts[1].AmountMinor, "fractional cents round to nearest")
}

func TestUnit_Ingest_AWSCost_FetchPaginates(t *testing.T) {
	fake := &fakeCostExplorer{pages: []*costexplorer.GetCostAndUsageOutput{
		page("token-1", group("111", "AmazonEC2", "1.00")),
		page("", group("222", "AmazonS3", "2.00")),
	}}
	adapter := awscost.NewWithAPI(fake)

	result, err := adapter.Fetch(t.Context(), window)
	require.NoError(t, err)
	assert.Len(t, result.Facts, 2)
	assert.Equal(t, 2, fake.calls)
}

func TestUnit_Ingest_AWSCost_MidPaginationFailureIsPartial(t *testing.T) {
	fake := &fakeCostExplorer{
		pages: []*costexplorer.GetCostAndUsageOutput{
			page("token-1", group("111", "AmazonEC2", "1.00")),
			nil,
		},
		errAt: 2,
		err:   errors.New("throttled"),
	}
	adapter := awscost.NewWithAPI(fake)

	result, err := adapter.Fetch(t.Context(), window)
	assert.ErrorIs(t, err, types.ErrPartialData)
	require.NotNil(t, result)
	assert.True(t, result.Partial)
	assert.Len(t, result.Facts, 1, "first page is kept")
}

func TestUnit_Ingest_AWSCost_AccessDeniedIsAuthError(t *testing.T) {
	fake := &fakeCostExplorer{
		errAt: 1,
		err: &smithy.GenericAPIError{
			Code:    "AccessDeniedException",
			Message: "not authorized",
		},
	}
	adapter := awscost.NewWithAPI(fake)

	_, err := adapter.Fetch(t.Context(), window)
	assert.ErrorIs(t, err, types.ErrAuth)
}

func TestUnit_Ingest_AWSCost_FirstCallFailureIsUnavailable(t *testing.T) {
	fake := &fakeCostExplorer{errAt: 1, err: errors.New("connection reset")}
	adapter := awscost.NewWithAPI(fake)

	result, err := adapter.Fetch(t.Context(), window)
	assert.ErrorIs(t, err, types.ErrSourceUnavailable)
	assert.Nil(t, result, "nothing fetched, prior data stays authoritative")
}

func TestUnit_Ingest_AWSCost_RejectsBadWindow(t *testing.T) {
	adapter := awscost.NewWithAPI(&fakeCostExplorer{})
	_, err := adapter.Fetch(t.Context(), types.TimeRange{})
	assert.ErrorIs(t, err, types.ErrInvalidPeriod)
}
