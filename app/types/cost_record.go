// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package types defines the core interfaces and data structures for the CostPlane engine.
//
// This package is the foundation of the engine architecture:
//
//   - Canonical data models: CostRecord, Budget, AllocationRule, Policy, Violation
//   - Ingestion contracts: RawCostFact and the per-cloud Adapter interface
//   - Storage interfaces: generic CRUD operations decoupled from the backend
//   - Error taxonomy: sentinel errors shared across the engine
//
// All monetary amounts are carried as integers in the smallest currency unit
// (cents for USD) to avoid floating-point drift in financial totals. Amounts
// only become floats at the presentation boundary (CSV export, HTTP JSON).
package types

import (
	"fmt"
	"strings"
	"time"
)

// Cloud identifies the provider a cost record originated from.
type Cloud string

const (
	CloudAWS   Cloud = "aws"
	CloudGCP   Cloud = "gcp"
	CloudAzure Cloud = "azure"
	CloudOther Cloud = "other"
)

// ParseCloud maps free-form provider names onto the canonical Cloud enum.
// Unrecognized providers collapse to CloudOther rather than failing, since a
// record from an unknown source must still be counted.
func ParseCloud(s string) Cloud {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aws", "amazon":
		return CloudAWS
	case "gcp", "google":
		return CloudGCP
	case "azure", "microsoft":
		return CloudAzure
	default:
		return CloudOther
	}
}

// ServiceOther is the canonical service bucket for provider services that are
// absent from the service catalog. Records land here instead of being dropped,
// so unmapped spend is visible rather than silently under-reported.
const ServiceOther = "Other"

// CostRecord is one normalized line of spend in the canonical cost store.
//
// The tuple (Cloud, AccountID, Service, ResourceID, PeriodStart, PeriodEnd,
// SourceBatchID) uniquely identifies a record; re-ingesting the same batch
// replaces rather than duplicates (last-write-wins per key). The store is
// append-only per batch: corrections arrive as superseding batches or as
// separate negative-amount records, never as in-place edits.
type CostRecord struct {
	ID uint `gorm:"primaryKey" json:"-"`

	Cloud     Cloud  `gorm:"uniqueIndex:idx_cost_record_key;size:16" json:"cloud"`
	AccountID string `gorm:"uniqueIndex:idx_cost_record_key;size:64" json:"account_id"`
	ProjectID string `gorm:"size:64" json:"project_id,omitempty"`

	// Service is the canonical service name after catalog mapping.
	Service string `gorm:"uniqueIndex:idx_cost_record_key;size:128" json:"service"`
	// ServiceUnmapped is set when the provider service was absent from the
	// catalog and the record was bucketed into ServiceOther.
	ServiceUnmapped bool `json:"service_unmapped,omitempty"`

	ResourceID string `gorm:"uniqueIndex:idx_cost_record_key;size:256" json:"resource_id,omitempty"`

	// Tags hold resolved, lower-cased tag keys and their values.
	Tags Tags `gorm:"serializer:json" json:"tags,omitempty"`

	// Half-open interval [PeriodStart, PeriodEnd), UTC.
	PeriodStart time.Time `gorm:"uniqueIndex:idx_cost_record_key" json:"period_start"`
	PeriodEnd   time.Time `gorm:"uniqueIndex:idx_cost_record_key" json:"period_end"`

	// AmountMinor is the amount in the smallest unit of Currency. Negative
	// amounts represent credits and refunds.
	AmountMinor int64  `json:"amount_minor_units"`
	Currency    string `gorm:"size:8" json:"currency"`

	// PendingConversion marks a record whose currency could not be converted
	// to the organization currency (no rate for the period). Pending records
	// are held out of aggregation until a rate arrives.
	PendingConversion bool `json:"pending_conversion,omitempty"`

	IngestedAt    time.Time `json:"ingested_at"`
	SourceBatchID string    `gorm:"uniqueIndex:idx_cost_record_key;size:64" json:"source_batch_id"`
}

// Tags is a mapping from lower-cased tag key to tag value.
type Tags map[string]string

// Get returns the value for key, case-insensitively on the key.
func (t Tags) Get(key string) (string, bool) {
	v, ok := t[strings.ToLower(key)]
	return v, ok
}

// Validate checks the record invariants that the normalizer guarantees.
func (r *CostRecord) Validate() error {
	if !r.PeriodStart.Before(r.PeriodEnd) {
		return fmt.Errorf("%w: period_start %s not before period_end %s",
			ErrInvalidPeriod, r.PeriodStart.Format(time.RFC3339), r.PeriodEnd.Format(time.RFC3339))
	}
	if r.Currency == "" {
		return fmt.Errorf("%w: empty currency", ErrInvalidRecord)
	}
	if r.SourceBatchID == "" {
		return fmt.Errorf("%w: empty source_batch_id", ErrInvalidRecord)
	}
	return nil
}

// Key returns the record's dedup key, the tuple the last-write-wins rule is
// defined over.
func (r *CostRecord) Key() string {
	return strings.Join([]string{
		string(r.Cloud), r.AccountID, r.Service, r.ResourceID,
		r.PeriodStart.UTC().Format(time.RFC3339), r.PeriodEnd.UTC().Format(time.RFC3339),
		r.SourceBatchID,
	}, "|")
}

// TimeRange is a half-open interval [Start, End) in UTC.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the range is non-empty.
func (tr TimeRange) Valid() bool { return tr.Start.Before(tr.End) }

// Duration returns End - Start.
func (tr TimeRange) Duration() time.Duration { return tr.End.Sub(tr.Start) }

// Previous returns the immediately preceding equal-length range, used for
// trend comparisons.
func (tr TimeRange) Previous() TimeRange {
	d := tr.Duration()
	return TimeRange{Start: tr.Start.Add(-d), End: tr.Start}
}

// Contains reports whether t falls within the range.
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}
