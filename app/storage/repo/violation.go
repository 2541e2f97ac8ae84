// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/costplane/costplane/app/storage/core"
	"github.com/costplane/costplane/app/types"
)

// ViolationRepo persists governance violations. The unique (policy, subject)
// index makes violation creation race-safe: concurrent or re-run evaluation
// cycles collide on the index instead of inserting duplicates.
type ViolationRepo struct {
	core.BaseRepoImpl
}

// NewViolationRepo creates the repository and migrates its schema.
func NewViolationRepo(db *gorm.DB) (*ViolationRepo, error) {
	if err := db.AutoMigrate(&types.Violation{}); err != nil {
		return nil, errors.Wrap(err, "migrating violation")
	}
	return &ViolationRepo{BaseRepoImpl: core.NewBaseRepoImpl(db, &types.Violation{})}, nil
}

// Create inserts a violation, assigning an ID when absent. A duplicate
// (policy, subject) pair surfaces as types.ErrDuplicateKey.
func (r *ViolationRepo) Create(ctx context.Context, v *types.Violation) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = types.ViolationOpen
	}
	return core.TranslateError(r.DB(ctx).Create(v).Error)
}

// Get returns the violation by ID, or types.ErrNotFound.
func (r *ViolationRepo) Get(ctx context.Context, id string) (*types.Violation, error) {
	var v types.Violation
	if err := r.DB(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, core.TranslateError(err)
	}
	return &v, nil
}

// Update persists status transitions made by the external approval workflow.
func (r *ViolationRepo) Update(ctx context.Context, v *types.Violation) error {
	return core.TranslateError(r.DB(ctx).Save(v).Error)
}

// FindBySubject returns the violation for a (policy, subject) pair in any
// status, or types.ErrNotFound.
func (r *ViolationRepo) FindBySubject(ctx context.Context, policyID, subjectID string) (*types.Violation, error) {
	var v types.Violation
	err := r.DB(ctx).
		Where("policy_id = ? AND subject_id = ?", policyID, subjectID).
		First(&v).Error
	if err != nil {
		return nil, core.TranslateError(err)
	}
	return &v, nil
}

// List returns violations matching the filter, newest first with ID as the
// deterministic tie-break.
func (r *ViolationRepo) List(ctx context.Context, filter types.ViolationFilter) ([]types.Violation, error) {
	db := r.DB(ctx)
	if filter.PolicyID != "" {
		db = db.Where("policy_id = ?", filter.PolicyID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		db = db.Where("severity = ?", filter.Severity)
	}

	var rows []types.Violation
	err := db.Order("detected_at DESC, id").Find(&rows).Error
	return rows, core.TranslateError(err)
}
