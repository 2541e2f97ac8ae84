// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// RecommendationCategory buckets what kind of saving a scanner found.
type RecommendationCategory string

const (
	RecommendationIdle      RecommendationCategory = "idle"
	RecommendationOversized RecommendationCategory = "oversized"
	RecommendationStorage   RecommendationCategory = "storage"
	RecommendationCommit    RecommendationCategory = "commitment"
)

// Recommendation is one row of the optimization scanners' feed. The engine
// does not produce these; it consumes them only to roll totals into the
// overview summary.
type Recommendation struct {
	ResourceID           string                 `json:"resource_id"`
	EstimatedSavingMinor int64                  `json:"estimated_savings_minor_units"`
	Currency             string                 `json:"currency"`
	Category             RecommendationCategory `json:"category"`
	DetectedAt           time.Time              `json:"detected_at"`
}

// RecommendationFeed supplies current recommendations from the optimization
// scanners, an external collaborator.
type RecommendationFeed interface {
	Recommendations() ([]Recommendation, error)
}
