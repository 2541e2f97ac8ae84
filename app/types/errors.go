// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import "errors"

// Storage errors returned by repository implementations. Business logic
// matches on these rather than on ORM error types.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Ingestion (SourceError) taxonomy. These are retryable: the previous
// committed batch remains visible and authoritative until a new batch fully
// commits.
var (
	// ErrSourceUnavailable indicates the provider billing API could not be
	// reached or returned a server-side failure.
	ErrSourceUnavailable = errors.New("billing source unavailable")
	// ErrAuth indicates the adapter's credentials were rejected.
	ErrAuth = errors.New("billing source authentication failed")
	// ErrPartialData indicates a truncated but usable fetch (e.g. pagination
	// cut short by a quota). Callers must surface it, never treat it as a
	// clean success.
	ErrPartialData = errors.New("billing source returned partial data")
)

// Data-quality errors. These degrade individual records into flagged buckets
// ("Other", pending conversion) rather than failing the batch; one bad record
// never blocks the rest.
var (
	ErrUnmappableService       = errors.New("service not in catalog")
	ErrCurrencyRateUnavailable = errors.New("no currency rate for period")
	ErrInvalidPeriod           = errors.New("invalid cost period")
	ErrInvalidRecord           = errors.New("invalid cost record")
)

// Configuration errors are rejected when configuration is loaded, before any
// evaluation can run against it.
var (
	ErrInvalidAllocationConfig = errors.New("invalid allocation configuration")
	ErrInvalidPolicy           = errors.New("invalid policy")
	ErrInvalidConfig           = errors.New("invalid configuration")
)

// ErrConsistency marks a programming defect such as an allocation that does
// not sum back to its aggregate total. It is fatal to the operation that
// detects it and must be logged, never swallowed.
var ErrConsistency = errors.New("consistency violation")

// ErrInsufficientData distinguishes "nothing to compute from" from a true
// zero result (e.g. a run-rate forecast on day zero of a period). Read paths
// report it as a marker on the result, not as a failure.
var ErrInsufficientData = errors.New("insufficient data")
