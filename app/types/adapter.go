// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"context"
	"time"
)

// RawCostFact is one line of billing data as an adapter fetched it, carrying
// provider-native field names and units. The normalizer turns facts into
// canonical CostRecords; nothing downstream of the normalizer ever sees one.
type RawCostFact struct {
	// Provider is the adapter's own name for the cloud ("aws", "Amazon",
	// ...); the normalizer maps it onto the Cloud enum.
	Provider string `json:"provider"`

	AccountID string `json:"account_id"`
	ProjectID string `json:"project_id,omitempty"`

	// ProviderService is the provider-native service identifier (e.g.
	// "AmazonEC2", "Compute Engine") before catalog mapping.
	ProviderService string `json:"provider_service"`

	ResourceID string `json:"resource_id,omitempty"`

	// ProviderTags carry the provider's tag keys verbatim, including any
	// vendor prefixes; the tag-resolution policy rewrites them.
	ProviderTags map[string]string `json:"provider_tags,omitempty"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	AmountMinor int64  `json:"amount_minor_units"`
	Currency    string `json:"currency"`
}

// FetchResult is what an adapter hands back for one window. Partial is set
// when the fetch was truncated but usable (ErrPartialData); the facts present
// are still trustworthy and may be committed, but the truncation must be
// surfaced to the operator.
type FetchResult struct {
	Facts   []RawCostFact
	Partial bool
}

// Adapter is the per-cloud ingestion contract. Implementations live behind
// this interface so the engine depends only on their output.
//
// Adapters must be idempotent: re-fetching the same window yields facts that
// normalize to an identical set of CostRecords, which is what makes retry
// after a failed sync safe.
type Adapter interface {
	// Cloud identifies which provider this adapter ingests.
	Cloud() Cloud

	// Fetch retrieves the billing facts for the window. It fails with
	// ErrSourceUnavailable or ErrAuth (both leave prior data authoritative),
	// or returns a FetchResult with Partial set alongside ErrPartialData.
	Fetch(ctx context.Context, window TimeRange) (*FetchResult, error)
}

// MetadataProvider supplies resource metadata (instance type, GPU flag, ...)
// from the inventory collector. The governance engine joins policies against
// it; it is an external collaborator specified only at this boundary.
type MetadataProvider interface {
	// Lookup returns the metadata for a resource, or ErrNotFound.
	Lookup(ctx context.Context, resourceID string) (*ResourceMetadata, error)
}

// ResourceMetadata is the inventory collector's view of one resource.
type ResourceMetadata struct {
	ResourceID   string            `json:"resource_id"`
	InstanceType string            `json:"instance_type,omitempty"`
	GPUPresent   bool              `json:"gpu_present,omitempty"`
	Region       string            `json:"region,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Attribute returns a named metadata attribute, checking the well-known
// fields before the free-form attribute map.
func (m *ResourceMetadata) Attribute(name string) (string, bool) {
	switch name {
	case "instance_type":
		return m.InstanceType, m.InstanceType != ""
	case "region":
		return m.Region, m.Region != ""
	case "gpu_present":
		if m.GPUPresent {
			return "true", true
		}
		return "false", true
	}
	v, ok := m.Attributes[name]
	return v, ok
}
