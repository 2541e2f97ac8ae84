// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package governance evaluates configured policies against cost records and
// resource metadata, recording violations for the approval workflow.
//
// Evaluation is idempotent by construction: the violation store's unique
// (policy, subject) constraint absorbs re-detections, so a cycle retried
// after a crash records each finding exactly once. Violations are only ever
// created here; approving or rejecting them is a user action elsewhere.
package governance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/costplane/costplane/app/types"
	"github.com/costplane/costplane/app/utils/telemetry"
)

// RecordStore is the slice of the cost store the engine reads.
type RecordStore interface {
	List(ctx context.Context, scope types.Scope, window types.TimeRange) ([]types.CostRecord, error)
}

// ViolationSink is where detections land.
type ViolationSink interface {
	Create(ctx context.Context, v *types.Violation) error
}

// Report summarizes one evaluation cycle.
type Report struct {
	Policies int `json:"policies"`
	Disabled int `json:"disabled"`

	// Created counts new violations; Existing counts detections that were
	// already on record from a prior cycle.
	Created  int `json:"created"`
	Existing int `json:"existing"`
}

// Engine runs policies over a window of cost data.
type Engine struct {
	records    RecordStore
	violations ViolationSink
	// metadata may be nil when no inventory collector is wired; attribute
	// policies then match nothing.
	metadata types.MetadataProvider
	now      func() time.Time
}

// New creates a governance engine. metadata may be nil.
func New(records RecordStore, violations ViolationSink, metadata types.MetadataProvider) *Engine {
	return &Engine{records: records, violations: violations, metadata: metadata, now: time.Now}
}

// WithClock overrides the detection timestamp source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate runs every active policy against the window and records the
// violations. Disabled policies are skipped without retracting anything they
// previously produced.
func (e *Engine) Evaluate(ctx context.Context, policies []types.Policy, window types.TimeRange) (*Report, error) {
	if !window.Valid() {
		return nil, errors.Wrapf(types.ErrInvalidPeriod, "evaluation window %v", window)
	}

	report := &Report{Policies: len(policies)}
	for i := range policies {
		p := &policies[i]
		if !p.Active() {
			report.Disabled++
			continue
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if err := e.evaluateOne(ctx, p, window, report); err != nil {
			return nil, errors.Wrapf(err, "evaluating policy %q", p.ID)
		}
	}

	log.Ctx(ctx).Info().
		Int("policies", report.Policies).
		Int("created", report.Created).
		Int("existing", report.Existing).
		Msg("governance evaluation complete")
	return report, nil
}

func (e *Engine) evaluateOne(ctx context.Context, p *types.Policy, window types.TimeRange, report *Report) error {
	records, err := e.records.List(ctx, p.Scope, window)
	if err != nil {
		return errors.Wrap(err, "listing cost records")
	}

	var found []types.Violation
	switch p.Kind {
	case types.PolicyResourceAttribute:
		found, err = e.matchResourceAttribute(ctx, p, records)
		if err != nil {
			return err
		}
	case types.PolicySpendThreshold:
		found = matchSpendThreshold(p, records)
	case types.PolicyTagPresence:
		found = matchTagPresence(p, records)
	}

	created := 0
	for i := range found {
		found[i].DetectedAt = e.now().UTC()
		err := e.violations.Create(ctx, &found[i])
		switch {
		case errors.Is(err, types.ErrDuplicateKey):
			// already on record from an earlier cycle
			report.Existing++
		case err != nil:
			return errors.Wrap(err, "recording violation")
		default:
			report.Created++
			created++
		}
	}
	if created > 0 {
		telemetry.CountViolations(p.ID, created)
	}
	return nil
}

// matchResourceAttribute flags resources whose metadata attribute equals the
// configured value. Resources the inventory does not know are skipped, not
// flagged: absence of metadata is not evidence.
func (e *Engine) matchResourceAttribute(ctx context.Context, p *types.Policy, records []types.CostRecord) ([]types.Violation, error) {
	if e.metadata == nil {
		log.Ctx(ctx).Warn().Str("policy", p.ID).Msg("no metadata provider wired, attribute policy matches nothing")
		return nil, nil
	}

	accounts := make(map[string]string)
	for i := range records {
		if records[i].ResourceID != "" {
			accounts[records[i].ResourceID] = records[i].AccountID
		}
	}
	resources := lo.Keys(accounts)
	sort.Strings(resources)

	var found []types.Violation
	for _, resourceID := range resources {
		meta, err := e.metadata.Lookup(ctx, resourceID)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "looking up metadata for %q", resourceID)
		}
		value, ok := meta.Attribute(p.AttributeName)
		if !ok || value != p.AttributeEquals {
			continue
		}
		found = append(found, types.Violation{
			PolicyID:   p.ID,
			SubjectID:  resourceID,
			ResourceID: resourceID,
			AccountID:  accounts[resourceID],
			Severity:   p.Severity,
			Detail:     fmt.Sprintf("%s=%s", p.AttributeName, value),
		})
	}
	return found, nil
}

// matchSpendThreshold flags accounts whose scoped spend over the window
// exceeds the threshold.
func matchSpendThreshold(p *types.Policy, records []types.CostRecord) []types.Violation {
	spend := make(map[string]int64)
	for i := range records {
		spend[records[i].AccountID] += records[i].AmountMinor
	}

	accounts := lo.Keys(spend)
	sort.Strings(accounts)

	var found []types.Violation
	for _, account := range accounts {
		if spend[account] <= p.ThresholdMinor {
			continue
		}
		found = append(found, types.Violation{
			PolicyID:  p.ID,
			SubjectID: account,
			AccountID: account,
			Severity:  p.Severity,
			Detail:    fmt.Sprintf("spend %d exceeds threshold %d minor units", spend[account], p.ThresholdMinor),
		})
	}
	return found
}

// matchTagPresence flags resources whose records lack the required tag.
// Records without a resource identity have no reviewable subject and are
// left to the Unallocated reporting path instead.
func matchTagPresence(p *types.Policy, records []types.CostRecord) []types.Violation {
	accounts := make(map[string]string)
	for i := range records {
		r := &records[i]
		if r.ResourceID == "" {
			continue
		}
		if _, ok := r.Tags.Get(p.RequiredTag); ok {
			continue
		}
		accounts[r.ResourceID] = r.AccountID
	}

	resources := lo.Keys(accounts)
	sort.Strings(resources)

	found := make([]types.Violation, 0, len(resources))
	for _, resourceID := range resources {
		found = append(found, types.Violation{
			PolicyID:   p.ID,
			SubjectID:  resourceID,
			ResourceID: resourceID,
			AccountID:  accounts[resourceID],
			Severity:   p.Severity,
			Detail:     fmt.Sprintf("missing required tag %q", p.RequiredTag),
		})
	}
	return found
}
