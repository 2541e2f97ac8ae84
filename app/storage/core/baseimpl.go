// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package core provides the repository base used by every CostPlane store.
//
// It implements the repository pattern over GORM with context-carried
// transactions: a transaction started with Tx puts the *gorm.DB into the
// context, and every repository operation that receives that context
// automatically participates in it. This is what gives batch commits their
// all-or-nothing property: the cost-record repository deletes and upserts
// inside one Tx block, and a reader on another connection never observes the
// intermediate state.
package core

import (
	"context"

	"gorm.io/gorm"
)

// RawBaseRepoImpl is the foundational database handle for repositories that
// don't follow the single-model table pattern.
type RawBaseRepoImpl struct {
	db *gorm.DB
}

// NewRawBaseRepoImpl wraps a GORM handle for embedding in a repository.
func NewRawBaseRepoImpl(db *gorm.DB) RawBaseRepoImpl {
	return RawBaseRepoImpl{db: db}
}

// DB returns a context-aware GORM handle. If the context carries an ongoing
// transaction the handle participates in it; otherwise it is the default
// connection. All repository operations must go through this method.
func (b *RawBaseRepoImpl) DB(ctx context.Context) *gorm.DB {
	if tx, found := FromContext(ctx); found {
		return tx.WithContext(ctx)
	}
	return b.db.WithContext(ctx)
}

// Tx executes block within a database transaction. The block receives a
// context carrying the transaction; returning an error rolls everything back,
// returning nil commits. Nested Tx calls join the outer transaction.
func (b *RawBaseRepoImpl) Tx(ctx context.Context, block func(ctxTx context.Context) error) error {
	return b.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return block(NewContext(ctx, tx))
	})
}

// BaseRepoImpl extends RawBaseRepoImpl with model-bound operations for
// standard single-table repositories.
type BaseRepoImpl struct {
	RawBaseRepoImpl
	model interface{}
}

// NewBaseRepoImpl creates a repository base bound to a model type.
func NewBaseRepoImpl(db *gorm.DB, model interface{}) BaseRepoImpl {
	return BaseRepoImpl{
		RawBaseRepoImpl: NewRawBaseRepoImpl(db),
		model:           model,
	}
}

// Count returns the number of records in the repository's table.
func (b *BaseRepoImpl) Count(ctx context.Context) (int, error) {
	var count int64
	err := b.DB(ctx).Model(b.model).Count(&count).Error
	return int(count), TranslateError(err)
}

// DeleteAll removes every record in the table. Primarily for test cleanup.
func (b *BaseRepoImpl) DeleteAll(ctx context.Context) error {
	return TranslateError(b.DB(ctx).Where("1 = 1").Delete(b.model).Error)
}

// key is an unexported context-key type to avoid collisions with other
// packages' context values.
type key int

var dbKey key

// NewContext returns a context carrying a GORM transaction. Used by Tx;
// rarely needed directly.
func NewContext(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey, db)
}

// FromContext retrieves the GORM transaction from the context, if present.
func FromContext(ctx context.Context) (*gorm.DB, bool) {
	db, ok := ctx.Value(dbKey).(*gorm.DB)
	return db, ok
}
