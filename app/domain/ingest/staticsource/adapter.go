// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package staticsource ingests billing facts from YAML files on disk.
//
// It covers providers without a billing API integration yet (manual exports,
// finance spreadsheets converted to YAML) and doubles as the fixture source
// for end-to-end testing.
package staticsource

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/costplane/costplane/app/types"
)

// fileFact is one entry in the fixture file, mirroring RawCostFact with YAML
// field names.
type fileFact struct {
	AccountID       string            `yaml:"account_id"`
	ProjectID       string            `yaml:"project_id"`
	ProviderService string            `yaml:"provider_service"`
	ResourceID      string            `yaml:"resource_id"`
	Tags            map[string]string `yaml:"tags"`
	PeriodStart     time.Time         `yaml:"period_start"`
	PeriodEnd       time.Time         `yaml:"period_end"`
	AmountMinor     int64             `yaml:"amount_minor_units"`
	Currency        string            `yaml:"currency"`
}

type costFile struct {
	Provider string     `yaml:"provider"`
	Facts    []fileFact `yaml:"facts"`
}

// Adapter reads one provider's facts from a YAML file.
type Adapter struct {
	cloud types.Cloud
	path  string
}

// New creates an adapter for the file. The file's facts must all belong to
// cloud's provider.
func New(cloud types.Cloud, path string) *Adapter {
	return &Adapter{cloud: cloud, path: path}
}

// Cloud implements types.Adapter.
func (a *Adapter) Cloud() types.Cloud { return a.cloud }

// Fetch implements types.Adapter, returning the facts whose period starts
// inside the window. A missing or unreadable file is a source failure, not an
// empty result: prior data stays authoritative.
func (a *Adapter) Fetch(_ context.Context, window types.TimeRange) (*types.FetchResult, error) {
	if !window.Valid() {
		return nil, errors.Wrapf(types.ErrInvalidPeriod, "fetch window %v", window)
	}

	raw, err := os.ReadFile(a.path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrSourceUnavailable, "reading %s: %v", a.path, err)
	}

	var file costFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(types.ErrSourceUnavailable, "parsing %s: %v", a.path, err)
	}
	provider := file.Provider
	if provider == "" {
		provider = string(a.cloud)
	}
	if types.ParseCloud(provider) != a.cloud {
		return nil, errors.Wrapf(types.ErrSourceUnavailable,
			"%s declares provider %q, adapter serves %q", a.path, file.Provider, a.cloud)
	}

	facts := make([]types.RawCostFact, 0, len(file.Facts))
	for _, f := range file.Facts {
		if !window.Contains(f.PeriodStart) {
			continue
		}
		facts = append(facts, types.RawCostFact{
			Provider:        provider,
			AccountID:       f.AccountID,
			ProjectID:       f.ProjectID,
			ProviderService: f.ProviderService,
			ResourceID:      f.ResourceID,
			ProviderTags:    f.Tags,
			PeriodStart:     f.PeriodStart,
			PeriodEnd:       f.PeriodEnd,
			AmountMinor:     f.AmountMinor,
			Currency:        f.Currency,
		})
	}
	return &types.FetchResult{Facts: facts}, nil
}
