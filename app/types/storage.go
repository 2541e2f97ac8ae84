// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"context"
)

// StorageCommon defines the operations every repository provides by virtue of
// embedding the core base implementation: transactions, counting, and bulk
// deletion.
type StorageCommon interface {
	// Tx runs the block within a database transaction. The block receives a
	// transaction context that must be used for all operations inside it; an
	// error return rolls the transaction back.
	Tx(ctx context.Context, block func(ctxTx context.Context) error) error

	// Count returns the total number of records in the repository.
	Count(ctx context.Context) (int, error)

	// DeleteAll removes every record. Primarily for test cleanup.
	DeleteAll(ctx context.Context) error
}

// Storage combines the basic CRUD operations for a model type. Concrete
// backends live in app/storage; the domain layer only sees these interfaces.
type Storage[Model any, ID comparable] interface {
	Creator[Model]
	Reader[Model, ID]
	Updater[Model]
	Deleter[ID]
}

// Creator creates new records.
type Creator[Model any] interface {
	// Create inserts a new record. It may modify the input model (e.g. to
	// assign the ID).
	Create(ctx context.Context, it *Model) error
}

// Reader retrieves records by ID.
type Reader[Model any, ID comparable] interface {
	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id ID) (*Model, error)
}

// Updater modifies existing records.
type Updater[Model any] interface {
	Update(ctx context.Context, it *Model) error
}

// Deleter removes records by ID.
type Deleter[ID comparable] interface {
	Delete(ctx context.Context, id ID) error
}

// CostRecordStore is the canonical cost store contract. The store is
// append-only per batch: a batch either commits atomically or leaves no
// trace, and readers never observe a partially-written batch.
type CostRecordStore interface {
	StorageCommon

	// CommitBatch atomically replaces the (cloud, account) partition's
	// records overlapping the window with the batch's records, upserting on
	// the record key so re-ingestion is idempotent (last-write-wins).
	CommitBatch(ctx context.Context, cloud Cloud, account string, window TimeRange, records []CostRecord) error

	// List returns the records matching the scope whose period start falls
	// inside the window, as a consistent snapshot ordered by record key.
	// Records pending currency conversion are excluded.
	List(ctx context.Context, scope Scope, window TimeRange) ([]CostRecord, error)

	// ListPending returns records held back for missing currency rates, so a
	// later rate refresh can re-normalize them.
	ListPending(ctx context.Context) ([]CostRecord, error)
}

// ViolationStore persists governance violations.
type ViolationStore interface {
	StorageCommon
	Creator[Violation]
	Reader[Violation, string]
	Updater[Violation]

	// FindBySubject returns the violation for a (policy, subject) pair in
	// any status, or ErrNotFound. Re-run idempotency itself is enforced by
	// Create returning ErrDuplicateKey on the pair's unique index; this is
	// the lookup for inspecting what is already on record.
	FindBySubject(ctx context.Context, policyID, subjectID string) (*Violation, error)

	// List returns violations matching the filter, newest first.
	List(ctx context.Context, filter ViolationFilter) ([]Violation, error)
}

// ViolationFilter narrows a violation listing. Zero values match everything.
type ViolationFilter struct {
	PolicyID string          `json:"policy_id,omitempty"`
	Status   ViolationStatus `json:"status,omitempty"`
	Severity Severity        `json:"severity,omitempty"`
}
