// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ingest orchestrates one sync cycle: fetch per cloud, normalize,
// and commit, each cloud isolated from the others.
package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/costplane/costplane/app/domain/normalize"
	"github.com/costplane/costplane/app/types"
	"github.com/costplane/costplane/app/utils/telemetry"
)

// Store is the slice of the cost store the service writes through.
type Store interface {
	Tx(ctx context.Context, block func(ctx context.Context) error) error
	CommitBatch(ctx context.Context, cloud types.Cloud, account string, window types.TimeRange, records []types.CostRecord) error
	ListPending(ctx context.Context) ([]types.CostRecord, error)
	Update(ctx context.Context, rec *types.CostRecord) error
}

// SyncResult is the outcome for one cloud within a cycle.
type SyncResult struct {
	Cloud   types.Cloud      `json:"cloud"`
	BatchID string           `json:"batch_id,omitempty"`
	Report  normalize.Report `json:"report"`

	// Partial marks a truncated-but-committed fetch.
	Partial bool `json:"partial,omitempty"`

	// Err is set when the cloud contributed nothing this cycle; the store's
	// prior data for it remains authoritative.
	Err error `json:"-"`
}

// Service runs sync cycles over a set of adapters.
type Service struct {
	adapters   []types.Adapter
	normalizer *normalize.Normalizer
	store      Store
	newBatchID func() string
}

// New creates a sync service.
func New(store Store, normalizer *normalize.Normalizer, adapters ...types.Adapter) *Service {
	return &Service{
		adapters:   adapters,
		normalizer: normalizer,
		store:      store,
		newBatchID: uuid.NewString,
	}
}

// WithBatchIDs overrides batch ID generation, for tests.
func (s *Service) WithBatchIDs(gen func() string) *Service {
	s.newBatchID = gen
	return s
}

// Sync fetches, normalizes, and commits the window for every adapter, clouds
// in parallel.
//
// A cloud whose fetch fails outright is reported in its SyncResult and does
// not disturb the others, since its previously committed data stays
// authoritative. A partial fetch is still committed, marked partial. Commit
// failures are different: they mean the store is broken, so they fail the
// whole cycle.
func (s *Service) Sync(ctx context.Context, window types.TimeRange) ([]SyncResult, error) {
	if !window.Valid() {
		return nil, errors.Wrapf(types.ErrInvalidPeriod, "sync window %v", window)
	}

	results := make([]SyncResult, len(s.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range s.adapters {
		g.Go(func() error {
			results[i] = s.syncCloud(gctx, adapter, window)
			if results[i].Err != nil && !isSourceFailure(results[i].Err) {
				return results[i].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Wrap(err, "sync cycle")
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Cloud < results[j].Cloud })
	return results, nil
}

func (s *Service) syncCloud(ctx context.Context, adapter types.Adapter, window types.TimeRange) SyncResult {
	started := time.Now()
	result := SyncResult{Cloud: adapter.Cloud()}
	logger := log.Ctx(ctx).With().Str("cloud", string(result.Cloud)).Logger()

	fetched, err := adapter.Fetch(ctx, window)
	switch {
	case errors.Is(err, types.ErrPartialData) && fetched != nil:
		result.Partial = true
		logger.Warn().Err(err).Msg("fetch truncated, committing partial data")
	case err != nil:
		result.Err = err
		telemetry.CountSync(string(result.Cloud), telemetry.OutcomeFailed)
		logger.Error().Err(err).Msg("fetch failed, prior data stays authoritative")
		return result
	}

	result.BatchID = s.newBatchID()
	records, report := s.normalizer.Normalize(ctx, fetched.Facts, result.BatchID)
	result.Report = report

	// one transaction per cloud: all its account partitions land or none do
	result.Err = s.store.Tx(ctx, func(txCtx context.Context) error {
		for account, batch := range byAccount(records, result.Cloud) {
			if err := s.store.CommitBatch(txCtx, result.Cloud, account, window, batch); err != nil {
				return errors.Wrapf(err, "committing %s/%s", result.Cloud, account)
			}
		}
		return nil
	})
	if result.Err != nil {
		telemetry.CountSync(string(result.Cloud), telemetry.OutcomeFailed)
		return result
	}

	outcome := telemetry.OutcomeOK
	if result.Partial {
		outcome = telemetry.OutcomePartial
	}
	telemetry.CountSync(string(result.Cloud), outcome)
	telemetry.CountRecordsCommitted(string(result.Cloud), report.Records)

	logger.Info().
		Str("batch_id", result.BatchID).
		Int("facts", report.Facts).
		Int("records", report.Records).
		Int("skipped", report.Skipped).
		Bool("partial", result.Partial).
		Dur("elapsed", time.Since(started)).
		Msg("cloud synced")
	return result
}

// RetryPending re-attempts currency conversion for records held back by a
// missing rate, using the normalizer's current rate table. It returns how
// many records were converted; records still without a rate stay pending.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing pending records")
	}

	converted := 0
	err = s.store.Tx(ctx, func(txCtx context.Context) error {
		for i := range pending {
			if !s.normalizer.Reconvert(&pending[i]) {
				continue
			}
			if err := s.store.Update(txCtx, &pending[i]); err != nil {
				return errors.Wrapf(err, "updating record %s", pending[i].Key())
			}
			converted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	telemetry.CountPendingConverted(converted)
	if len(pending) > 0 {
		log.Ctx(ctx).Info().
			Int("pending", len(pending)).
			Int("converted", converted).
			Msg("retried pending conversions")
	}
	return converted, nil
}

func byAccount(records []types.CostRecord, cloud types.Cloud) map[string][]types.CostRecord {
	batches := make(map[string][]types.CostRecord)
	for i := range records {
		if records[i].Cloud != cloud {
			continue
		}
		batches[records[i].AccountID] = append(batches[records[i].AccountID], records[i])
	}
	return batches
}

// isSourceFailure reports whether the error is an adapter-side failure that
// degrades only its own cloud.
func isSourceFailure(err error) bool {
	return errors.Is(err, types.ErrSourceUnavailable) || errors.Is(err, types.ErrAuth)
}
