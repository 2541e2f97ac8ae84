// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config implements the configuration layer for the CostPlane engine.
//
// Two kinds of configuration live here:
//
//   - Process settings (app/config/engine): ports, database paths, log
//     levels. Loaded once at startup from YAML plus environment variables.
//   - The domain Snapshot (this file): service catalog, tag-resolution
//     policy, currency rates, budgets, allocation rules, and governance
//     policies.
//
// The Snapshot is explicitly versioned and passed by value into the engines
// rather than read from ambient state, so any aggregation, budget, or
// allocation result is reproducible given a (store snapshot, config snapshot)
// pair. Validation happens at load time: a malformed allocation share set or
// policy predicate is a ConfigurationError here and can never reach an
// evaluation cycle.
package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/costplane/costplane/app/types"
)

// Snapshot is one immutable version of the engine's domain configuration.
type Snapshot struct {
	// Version identifies this snapshot in logs and results. Defaults to the
	// file's modification date when absent.
	Version string `yaml:"version"`

	// OrgCurrency is the organization default currency every record is
	// normalized into.
	OrgCurrency string `yaml:"org_currency"`

	// ServiceCatalog maps provider-native service identifiers to canonical
	// service names, per cloud. Unlisted services bucket into "Other".
	ServiceCatalog map[types.Cloud]map[string]string `yaml:"service_catalog"`

	// TagPolicy rewrites provider tag keys into canonical semantics.
	TagPolicy TagPolicy `yaml:"tag_policy"`

	// Rates is the currency conversion table.
	Rates RateTable `yaml:"currency_rates"`

	Budgets         []types.Budget         `yaml:"budgets"`
	AllocationRules []types.AllocationRule `yaml:"allocation_rules"`
	Policies        []types.Policy         `yaml:"policies"`
}

// TagPolicy maps provider-specific tag keys to canonical keys ("team",
// "product", ...). Keys are compared case-insensitively; unmapped keys pass
// through lower-cased so no tag is ever lost.
type TagPolicy struct {
	KeyMap map[string]string `yaml:"key_map"`
}

// Resolve returns the canonical key for a provider tag key.
func (p TagPolicy) Resolve(providerKey string) string {
	lower := strings.ToLower(strings.TrimSpace(providerKey))
	for from, to := range p.KeyMap {
		if strings.ToLower(from) == lower {
			return strings.ToLower(to)
		}
	}
	return lower
}

// LoadSnapshot reads and validates a domain configuration snapshot from a
// YAML file.
func LoadSnapshot(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot")
	}
	var snap Snapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrapf(types.ErrInvalidConfig, "parsing snapshot %s: %v", path, err)
	}
	if snap.Version == "" {
		if st, statErr := os.Stat(path); statErr == nil {
			snap.Version = st.ModTime().UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks every configuration-owned object. Anything rejected here is
// a ConfigurationError surfaced to the operator, never a runtime failure.
func (s *Snapshot) Validate() error {
	if s.OrgCurrency == "" {
		return errors.Wrap(types.ErrInvalidConfig, "org_currency is required")
	}
	s.OrgCurrency = strings.ToUpper(s.OrgCurrency)

	for i := range s.Budgets {
		if err := s.Budgets[i].Validate(); err != nil {
			return err
		}
		if s.Budgets[i].Currency == "" {
			s.Budgets[i].Currency = s.OrgCurrency
		}
	}

	for i := range s.AllocationRules {
		if err := s.AllocationRules[i].Validate(); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(s.Policies))
	for i := range s.Policies {
		if err := s.Policies[i].Validate(); err != nil {
			return err
		}
		id := s.Policies[i].ID
		if _, dup := seen[id]; dup {
			return errors.Wrapf(types.ErrInvalidPolicy, "duplicate policy id %q", id)
		}
		seen[id] = struct{}{}
	}

	return s.Rates.validate()
}

// Budget returns the named budget, or nil.
func (s *Snapshot) Budget(name string) *types.Budget {
	for i := range s.Budgets {
		if s.Budgets[i].Name == name {
			return &s.Budgets[i]
		}
	}
	return nil
}

// AllocationRule returns the named rule, or nil.
func (s *Snapshot) AllocationRule(name string) *types.AllocationRule {
	for i := range s.AllocationRules {
		if s.AllocationRules[i].Name == name {
			return &s.AllocationRules[i]
		}
	}
	return nil
}

// CanonicalService maps a provider service identifier to its catalog name.
// The second return reports whether the catalog knew the service.
func (s *Snapshot) CanonicalService(cloud types.Cloud, providerService string) (string, bool) {
	byCloud, ok := s.ServiceCatalog[cloud]
	if !ok {
		return types.ServiceOther, false
	}
	want := strings.ToLower(strings.TrimSpace(providerService))
	for from, to := range byCloud {
		if strings.ToLower(from) == want {
			return to, true
		}
	}
	return types.ServiceOther, false
}

// Rate is one currency conversion rate into the organization currency,
// effective from Date onward until a newer rate supersedes it.
type Rate struct {
	Date time.Time `yaml:"date"`
	From string    `yaml:"from"`
	// Value is the major-unit multiplier: 1 From = Value OrgCurrency.
	Value float64 `yaml:"rate"`
}

// RateTable holds conversion rates, ordered oldest first per currency.
type RateTable []Rate

func (t RateTable) validate() error {
	for _, r := range t {
		if r.From == "" || r.Value <= 0 {
			return errors.Wrapf(types.ErrInvalidConfig, "bad currency rate %+v", r)
		}
	}
	return nil
}

// At returns the rate in effect for the currency at the given time: the
// newest rate dated at or before it. The second return is false when the
// table has no usable rate, which holds the record in a pending state rather
// than discarding it.
func (t RateTable) At(currency string, at time.Time) (float64, bool) {
	var (
		best      float64
		bestDate  time.Time
		bestFound bool
	)
	for _, r := range t {
		if !strings.EqualFold(r.From, currency) || r.Date.After(at) {
			continue
		}
		if !bestFound || r.Date.After(bestDate) {
			best, bestDate, bestFound = r.Value, r.Date, true
		}
	}
	return best, bestFound
}

// Merge folds newer rates into the table, replacing entries for the same
// (currency, date) pair, and returns the merged table sorted by date.
func (t RateTable) Merge(newer RateTable) RateTable {
	type key struct {
		from string
		date time.Time
	}
	merged := make(map[key]Rate, len(t)+len(newer))
	for _, r := range t {
		merged[key{strings.ToUpper(r.From), r.Date}] = r
	}
	for _, r := range newer {
		merged[key{strings.ToUpper(r.From), r.Date}] = r
	}
	out := make(RateTable, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].From < out[j].From
	})
	return out
}
