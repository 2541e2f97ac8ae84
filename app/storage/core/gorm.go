// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// NewDriver creates a GORM database instance with the standard CostPlane
// configuration, independent of the backend dialector:
//
//   - singular table names ("cost_record", not "cost_records")
//   - UTC timestamps truncated to millisecond precision
//   - structured logging through the zerolog adapter
//   - error translation enabled so TranslateError sees typed errors
func NewDriver(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		NowFunc:        DatabaseNow,
		Logger:         &ZeroLogAdapter{},
		TranslateError: true,
	})
}

// DatabaseNow returns the current time in UTC truncated to millisecond
// precision. Used for every created_at/updated_at field so ordering is
// consistent across backends and platforms.
func DatabaseNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
