// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package recommend reads the optimization scanners' feed from disk.
//
// The engine never produces recommendations; it only rolls their estimated
// savings into the spend summary. The feed file is re-read on every call so a
// scanner can drop a fresh export without restarting the API server.
package recommend

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/costplane/costplane/app/types"
)

type fileRecommendation struct {
	ResourceID           string    `yaml:"resource_id"`
	EstimatedSavingMinor int64     `yaml:"estimated_savings_minor_units"`
	Currency             string    `yaml:"currency"`
	Category             string    `yaml:"category"`
	DetectedAt           time.Time `yaml:"detected_at"`
}

type feedFile struct {
	Recommendations []fileRecommendation `yaml:"recommendations"`
}

// FileFeed is a RecommendationFeed backed by a scanner export on disk.
type FileFeed struct {
	path string
}

// NewFileFeed creates a feed reading the export at path.
func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

// Recommendations implements types.RecommendationFeed.
func (f *FileFeed) Recommendations() ([]types.Recommendation, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading feed %s", f.path)
	}
	var file feedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(types.ErrInvalidData, "parsing feed %s: %v", f.path, err)
	}
	recs := make([]types.Recommendation, 0, len(file.Recommendations))
	for _, r := range file.Recommendations {
		recs = append(recs, types.Recommendation{
			ResourceID:           r.ResourceID,
			EstimatedSavingMinor: r.EstimatedSavingMinor,
			Currency:             r.Currency,
			Category:             types.RecommendationCategory(r.Category),
			DetectedAt:           r.DetectedAt,
		})
	}
	return recs, nil
}
