// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package repo implements the CostPlane repositories on top of the core GORM
// infrastructure: the canonical cost store and the governance violation
// store.
package repo

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/costplane/costplane/app/storage/core"
	"github.com/costplane/costplane/app/types"
)

// CostRecordRepo is the canonical cost store. The store is append-only per
// batch: CommitBatch atomically supersedes a (cloud, account) partition's
// window, and readers on other connections never observe the intermediate
// state.
type CostRecordRepo struct {
	core.BaseRepoImpl
}

// NewCostRecordRepo creates the repository and migrates its schema.
func NewCostRecordRepo(db *gorm.DB) (*CostRecordRepo, error) {
	if err := db.AutoMigrate(&types.CostRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrating cost_record")
	}
	return &CostRecordRepo{BaseRepoImpl: core.NewBaseRepoImpl(db, &types.CostRecord{})}, nil
}

// costRecordKeyColumns is the dedup key the last-write-wins rule is defined
// over; it mirrors the idx_cost_record_key unique index on the model.
var costRecordKeyColumns = []clause.Column{
	{Name: "cloud"},
	{Name: "account_id"},
	{Name: "service"},
	{Name: "resource_id"},
	{Name: "period_start"},
	{Name: "period_end"},
	{Name: "source_batch_id"},
}

// CommitBatch atomically replaces the (cloud, account) partition's records
// whose period starts inside the window with the batch's records.
//
// Records from earlier batches in the window are deleted (batch replacement:
// a provider restating a bill supersedes the old lines), and the new records
// are upserted keyed on the record tuple so that committing the same batch
// twice leaves the store unchanged. The upsert keyed on the tuple is also
// what serializes concurrent writers per key.
func (r *CostRecordRepo) CommitBatch(ctx context.Context, cloud types.Cloud, account string, window types.TimeRange, records []types.CostRecord) error {
	if !window.Valid() {
		return errors.Wrapf(types.ErrInvalidPeriod, "commit window %v", window)
	}
	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			return err
		}
		if rec.Cloud != cloud || rec.AccountID != account {
			// a batch writes exactly one (cloud, account) partition
			return errors.Wrapf(types.ErrConsistency,
				"record %s outside batch partition (%s, %s)", rec.Key(), cloud, account)
		}
		if !window.Contains(rec.PeriodStart) {
			return errors.Wrapf(types.ErrConsistency,
				"record %s outside commit window", rec.Key())
		}
	}

	return r.Tx(ctx, func(ctxTx context.Context) error {
		db := r.DB(ctxTx)

		err := db.
			Where("cloud = ? AND account_id = ?", cloud, account).
			Where("period_start >= ? AND period_start < ?", window.Start, window.End).
			Delete(&types.CostRecord{}).Error
		if err != nil {
			return core.TranslateError(err)
		}

		if len(records) == 0 {
			return nil
		}
		err = db.Clauses(clause.OnConflict{
			Columns:   costRecordKeyColumns,
			UpdateAll: true,
		}).Create(&records).Error
		return core.TranslateError(err)
	})
}

// List returns the non-pending records matching the scope whose period starts
// inside the window, ordered by record key so identical queries against an
// unchanged store return identical output.
//
// Account and service filters are case-insensitive, the same matching rule
// Scope.Matches applies in memory.
func (r *CostRecordRepo) List(ctx context.Context, scope types.Scope, window types.TimeRange) ([]types.CostRecord, error) {
	db := r.DB(ctx).
		Where("pending_conversion = ?", false).
		Where("period_start >= ? AND period_start < ?", window.Start, window.End)

	if len(scope.Clouds) > 0 {
		db = db.Where("cloud IN ?", scope.Clouds)
	}
	if len(scope.Accounts) > 0 {
		db = db.Where("LOWER(account_id) IN ?", lowered(scope.Accounts))
	}
	if len(scope.Services) > 0 {
		db = db.Where("LOWER(service) IN ?", lowered(scope.Services))
	}

	var rows []types.CostRecord
	err := db.
		Order("cloud, account_id, service, resource_id, period_start, source_batch_id").
		Find(&rows).Error
	if err != nil {
		return nil, core.TranslateError(err)
	}

	// tag filters are applied in memory; tags live in a serialized column
	if len(scope.Tags) == 0 {
		return rows, nil
	}
	matched := rows[:0]
	for i := range rows {
		if scope.Matches(&rows[i]) {
			matched = append(matched, rows[i])
		}
	}
	return matched, nil
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// Update saves an in-place change to an existing record. The only legitimate
// in-place edit is resolving a pending conversion; batch replacement handles
// everything else.
func (r *CostRecordRepo) Update(ctx context.Context, rec *types.CostRecord) error {
	if rec.ID == 0 {
		return errors.Wrap(types.ErrInvalidRecord, "update requires a persisted record")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return core.TranslateError(r.DB(ctx).Save(rec).Error)
}

// ListPending returns records held back for missing currency rates, oldest
// period first, so a rate refresh can re-normalize them.
func (r *CostRecordRepo) ListPending(ctx context.Context) ([]types.CostRecord, error) {
	var rows []types.CostRecord
	err := r.DB(ctx).
		Where("pending_conversion = ?", true).
		Order("period_start, cloud, account_id, service").
		Find(&rows).Error
	return rows, core.TranslateError(err)
}
