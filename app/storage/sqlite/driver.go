// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite specializes the core database infrastructure for the SQLite
// backend that backs the canonical cost store.
package sqlite

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/costplane/costplane/app/storage/core"
)

const (
	// InMemoryDSN is an in-memory database private to one connection. Used
	// in tests that need an isolated store.
	InMemoryDSN = ":memory:"

	// MemorySharedCached is an in-memory database shared across connections
	// via the shared cache, for tests exercising concurrent readers.
	MemorySharedCached = "file:memory?mode=memory&cache=shared"
)

// NewSQLiteDriver opens a SQLite database with the standard CostPlane GORM
// configuration. The dsn is a file path or one of the in-memory DSNs above.
func NewSQLiteDriver(dsn string) (*gorm.DB, error) {
	return core.NewDriver(sqlite.Open(dsn))
}
