// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ingest_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/config"
	"github.com/costplane/costplane/app/domain/ingest"
	"github.com/costplane/costplane/app/domain/normalize"
	"github.com/costplane/costplane/app/storage/repo"
	"github.com/costplane/costplane/app/storage/sqlite"
	"github.com/costplane/costplane/app/types"
)

var marchWindow = types.TimeRange{
	Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
}

type fakeAdapter struct {
	cloud  types.Cloud
	result *types.FetchResult
	err    error
}

func (f *fakeAdapter) Cloud() types.Cloud { return f.cloud }

func (f *fakeAdapter) Fetch(context.Context, types.TimeRange) (*types.FetchResult, error) {
	return f.result, f.err
}

func fact(provider, account, service string, amount int64) types.RawCostFact {
	return types.RawCostFact{
		Provider:        provider,
		AccountID:       account,
		ProviderService: service,
		PeriodStart:     marchWindow.Start,
		PeriodEnd:       marchWindow.Start.AddDate(0, 0, 1),
		AmountMinor:     amount,
		Currency:        "USD",
	}
}

func newService(t *testing.T, adapters ...types.Adapter) (*ingest.Service, *repo.CostRecordRepo) {
	t.Helper()
	db, err := sqlite.NewSQLiteDriver(sqlite.InMemoryDSN)
	require.NoError(t, err)
	store, err := repo.NewCostRecordRepo(db)
	require.NoError(t, err)

	snap := &config.Snapshot{
		Version:     "test",
		OrgCurrency: "USD",
		ServiceCatalog: map[types.Cloud]map[string]string{
			types.CloudAWS: {"AmazonEC2": "EC2"},
			types.CloudGCP: {"Compute Engine": "Compute"},
		},
	}
	var n int
	svc := ingest.New(store, normalize.New(snap), adapters...).
		WithBatchIDs(func() string { n++; return fmt.Sprintf("batch-%d", n) })
	return svc, store
}

func TestUnit_Ingest_Sync_CommitsEveryCloud(t *testing.T) {
	svc, store := newService(t,
		&fakeAdapter{cloud: types.CloudGCP, result: &types.FetchResult{
			Facts: []types.RawCostFact{fact("gcp", "proj-1", "Compute Engine", 3000)},
		}},
		&fakeAdapter{cloud: types.CloudAWS, result: &types.FetchResult{
			Facts: []types.RawCostFact{fact("aws", "111", "AmazonEC2", 5000)},
		}},
	)

	results, err := svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, types.CloudAWS, results[0].Cloud, "results ordered by cloud")
	assert.Equal(t, types.CloudGCP, results[1].Cloud)
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.NotEmpty(t, r.BatchID)
		assert.Equal(t, 1, r.Report.Records)
	}

	records, err := store.List(t.Context(), types.Scope{}, marchWindow)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestUnit_Ingest_Sync_FailedCloudDoesNotDisturbOthers(t *testing.T) {
	svc, store := newService(t,
		&fakeAdapter{cloud: types.CloudAWS, err: types.ErrSourceUnavailable},
		&fakeAdapter{cloud: types.CloudGCP, result: &types.FetchResult{
			Facts: []types.RawCostFact{fact("gcp", "proj-1", "Compute Engine", 3000)},
		}},
	)

	results, err := svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err, "a source failure degrades one cloud, not the cycle")
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, types.ErrSourceUnavailable)
	assert.NoError(t, results[1].Err)

	records, err := store.List(t.Context(), types.Scope{}, marchWindow)
	require.NoError(t, err)
	assert.Len(t, records, 1, "the healthy cloud still landed")
}

func TestUnit_Ingest_Sync_PriorDataSurvivesFailedFetch(t *testing.T) {
	healthy := &fakeAdapter{cloud: types.CloudAWS, result: &types.FetchResult{
		Facts: []types.RawCostFact{fact("aws", "111", "AmazonEC2", 5000)},
	}}
	svc, store := newService(t, healthy)

	_, err := svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err)

	healthy.result = nil
	healthy.err = types.ErrAuth
	results, err := svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, types.ErrAuth)

	records, err := store.List(t.Context(), types.Scope{}, marchWindow)
	require.NoError(t, err)
	require.Len(t, records, 1, "previous batch remains authoritative")
	assert.Equal(t, "batch-1", records[0].SourceBatchID)
}

func TestUnit_Ingest_Sync_ResyncReplacesWindow(t *testing.T) {
	adapter := &fakeAdapter{cloud: types.CloudAWS, result: &types.FetchResult{
		Facts: []types.RawCostFact{fact("aws", "111", "AmazonEC2", 5000)},
	}}
	svc, store := newService(t, adapter)

	_, err := svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err)

	// the provider restates the same day with a corrected amount
	adapter.result = &types.FetchResult{
		Facts: []types.RawCostFact{fact("aws", "111", "AmazonEC2", 4500)},
	}
	_, err = svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err)

	records, err := store.List(t.Context(), types.Scope{}, marchWindow)
	require.NoError(t, err)
	require.Len(t, records, 1, "replacement, not accumulation")
	assert.Equal(t, int64(4500), records[0].AmountMinor)
	assert.Equal(t, "batch-2", records[0].SourceBatchID)
}

func TestUnit_Ingest_Sync_PartialFetchCommittedAndFlagged(t *testing.T) {
	adapter := &fakeAdapter{
		cloud: types.CloudAWS,
		result: &types.FetchResult{
			Facts:   []types.RawCostFact{fact("aws", "111", "AmazonEC2", 5000)},
			Partial: true,
		},
		err: types.ErrPartialData,
	}
	svc, store := newService(t, adapter)

	results, err := svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Partial)
	assert.NoError(t, results[0].Err)

	records, err := store.List(t.Context(), types.Scope{}, marchWindow)
	require.NoError(t, err)
	assert.Len(t, records, 1, "partial data is committed, the flag surfaces it")
}

func TestUnit_Ingest_RetryPending_ConvertsOnceRateArrives(t *testing.T) {
	db, err := sqlite.NewSQLiteDriver(sqlite.InMemoryDSN)
	require.NoError(t, err)
	store, err := repo.NewCostRecordRepo(db)
	require.NoError(t, err)

	snap := &config.Snapshot{
		Version:     "test",
		OrgCurrency: "USD",
		ServiceCatalog: map[types.Cloud]map[string]string{
			types.CloudAWS: {"AmazonEC2": "EC2"},
		},
	}

	eurFact := fact("aws", "111", "AmazonEC2", 10000)
	eurFact.Currency = "EUR"
	adapter := &fakeAdapter{cloud: types.CloudAWS, result: &types.FetchResult{
		Facts: []types.RawCostFact{eurFact},
	}}

	// no EUR rate yet: the record commits pending and stays out of reads
	svc := ingest.New(store, normalize.New(snap), adapter).
		WithBatchIDs(func() string { return "batch-1" })
	results, err := svc.Sync(t.Context(), marchWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Report.PendingConversion)

	visible, err := store.List(t.Context(), types.Scope{}, marchWindow)
	require.NoError(t, err)
	assert.Empty(t, visible)

	// a later cycle carries the missing rate
	rates := snap.Rates.Merge(config.RateTable{{
		Date:  marchWindow.Start.AddDate(0, -1, 0),
		From:  "EUR",
		Value: 1.10,
	}})
	later := ingest.New(store, normalize.New(snap).WithRates(rates), adapter)
	converted, err := later.RetryPending(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, converted)

	visible, err = store.List(t.Context(), types.Scope{}, marchWindow)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "USD", visible[0].Currency)
	assert.Equal(t, int64(11000), visible[0].AmountMinor)

	// nothing left pending; a second retry is a no-op
	converted, err = later.RetryPending(t.Context())
	require.NoError(t, err)
	assert.Zero(t, converted)
}

func TestUnit_Ingest_Sync_RejectsBadWindow(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Sync(t.Context(), types.TimeRange{})
	assert.ErrorIs(t, err, types.ErrInvalidPeriod)
}
