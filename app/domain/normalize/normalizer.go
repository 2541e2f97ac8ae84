// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package normalize converts provider-native billing facts into canonical
// cost records.
//
// Normalization is deliberately lossy-averse: a fact the catalog cannot map
// lands in the "Other" service bucket with a flag, a fact without a currency
// rate is committed in a pending state, and only structurally broken facts
// (inverted periods, missing fields) are skipped, each one counted in the
// report so a sync can surface data-quality degradation without failing the
// batch.
package normalize

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/costplane/costplane/app/config"
	"github.com/costplane/costplane/app/types"
)

// Report summarizes one normalization pass.
type Report struct {
	// Facts is how many raw facts went in; Records how many canonical
	// records came out after last-write-wins dedup.
	Facts   int `json:"facts"`
	Records int `json:"records"`

	// UnmappedServices counts records bucketed into "Other" because the
	// catalog did not know the provider service.
	UnmappedServices int `json:"unmapped_services"`

	// PendingConversion counts records held back for a missing currency
	// rate.
	PendingConversion int `json:"pending_conversion"`

	// Skipped counts structurally invalid facts that could not become
	// records at all.
	Skipped int `json:"skipped"`
}

// Normalizer turns raw cost facts into canonical records using one immutable
// configuration snapshot, so a (facts, snapshot) pair always produces the
// same records.
type Normalizer struct {
	snap *config.Snapshot
	// rates may extend the snapshot's table with feed data; it defaults to
	// the snapshot's own rates.
	rates config.RateTable
	now   func() time.Time
}

// New creates a Normalizer over the snapshot.
func New(snap *config.Snapshot) *Normalizer {
	return &Normalizer{snap: snap, rates: snap.Rates, now: time.Now}
}

// WithClock overrides the ingestion timestamp source, for tests.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// WithRates overrides the rate table, typically with the snapshot's table
// merged with a fresh feed fetch.
func (n *Normalizer) WithRates(rates config.RateTable) *Normalizer {
	n.rates = rates
	return n
}

// Normalize converts facts into canonical records stamped with the batch ID.
//
// Facts that share a record key collapse last-write-wins, which is what makes
// re-normalizing an identical fetch produce an identical record set. Output
// is ordered by record key.
func (n *Normalizer) Normalize(ctx context.Context, facts []types.RawCostFact, batchID string) ([]types.CostRecord, Report) {
	report := Report{Facts: len(facts)}
	byKey := make(map[string]types.CostRecord, len(facts))

	for i := range facts {
		rec, ok := n.normalizeOne(ctx, &facts[i], batchID)
		if !ok {
			report.Skipped++
			continue
		}
		// last write wins per key, making re-ingestion idempotent
		byKey[rec.Key()] = rec
	}

	records := lo.Values(byKey)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key() < records[j].Key()
	})

	report.Records = len(records)
	for i := range records {
		if records[i].ServiceUnmapped {
			report.UnmappedServices++
		}
		if records[i].PendingConversion {
			report.PendingConversion++
		}
	}
	return records, report
}

func (n *Normalizer) normalizeOne(ctx context.Context, fact *types.RawCostFact, batchID string) (types.CostRecord, bool) {
	if !fact.PeriodStart.Before(fact.PeriodEnd) || fact.AccountID == "" || fact.Currency == "" {
		log.Ctx(ctx).Warn().
			Str("provider", fact.Provider).
			Str("account", fact.AccountID).
			Time("period_start", fact.PeriodStart).
			Time("period_end", fact.PeriodEnd).
			Msg("skipping structurally invalid cost fact")
		return types.CostRecord{}, false
	}

	cloud := types.ParseCloud(fact.Provider)
	service, mapped := n.snap.CanonicalService(cloud, fact.ProviderService)

	rec := types.CostRecord{
		Cloud:           cloud,
		AccountID:       fact.AccountID,
		ProjectID:       fact.ProjectID,
		Service:         service,
		ServiceUnmapped: !mapped,
		ResourceID:      fact.ResourceID,
		Tags:            n.resolveTags(fact.ProviderTags),
		PeriodStart:     fact.PeriodStart.UTC(),
		PeriodEnd:       fact.PeriodEnd.UTC(),
		AmountMinor:     fact.AmountMinor,
		Currency:        strings.ToUpper(fact.Currency),
		IngestedAt:      n.now().UTC(),
		SourceBatchID:   batchID,
	}

	n.convertCurrency(&rec)
	return rec, true
}

// resolveTags rewrites provider tag keys through the tag policy, lower-casing
// every key. When two provider keys resolve to the same canonical key the
// lexicographically later provider value wins, deterministically.
func (n *Normalizer) resolveTags(providerTags map[string]string) types.Tags {
	if len(providerTags) == 0 {
		return nil
	}
	keys := lo.Keys(providerTags)
	sort.Strings(keys)

	tags := make(types.Tags, len(keys))
	for _, k := range keys {
		tags[n.snap.TagPolicy.Resolve(k)] = providerTags[k]
	}
	return tags
}

// Reconvert retries currency conversion on a record held pending for a
// missing rate, reporting whether it is now converted. Records that are not
// pending are left untouched.
func (n *Normalizer) Reconvert(rec *types.CostRecord) bool {
	if !rec.PendingConversion {
		return false
	}
	n.convertCurrency(rec)
	return !rec.PendingConversion
}

// convertCurrency converts the record into the organization currency using
// the rate in effect at period start. Without a rate the record is held
// pending in its original currency rather than discarded.
func (n *Normalizer) convertCurrency(rec *types.CostRecord) {
	org := n.snap.OrgCurrency
	if strings.EqualFold(rec.Currency, org) {
		rec.Currency = org
		return
	}
	rate, ok := n.rates.At(rec.Currency, rec.PeriodStart)
	if !ok {
		rec.PendingConversion = true
		return
	}
	rec.AmountMinor = types.ConvertMinor(rec.AmountMinor, rec.Currency, org, rate)
	rec.Currency = org
	rec.PendingConversion = false
}
