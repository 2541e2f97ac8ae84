// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package governance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/domain/governance"
	"github.com/costplane/costplane/app/storage/repo"
	"github.com/costplane/costplane/app/storage/sqlite"
	"github.com/costplane/costplane/app/types"
)

var marchWindow = types.TimeRange{
	Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
}

type inventoryStub map[string]*types.ResourceMetadata

func (s inventoryStub) Lookup(_ context.Context, resourceID string) (*types.ResourceMetadata, error) {
	if meta, ok := s[resourceID]; ok {
		return meta, nil
	}
	return nil, types.ErrNotFound
}

type harness struct {
	engine     *governance.Engine
	records    *repo.CostRecordRepo
	violations *repo.ViolationRepo
}

func newHarness(t *testing.T, inventory inventoryStub) *harness {
	t.Helper()
	db, err := sqlite.NewSQLiteDriver(sqlite.InMemoryDSN)
	require.NoError(t, err)
	records, err := repo.NewCostRecordRepo(db)
	require.NoError(t, err)
	violations, err := repo.NewViolationRepo(db)
	require.NoError(t, err)
	engine := governance.New(records, violations, inventory).
		WithClock(func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) })
	return &harness{engine: engine, records: records, violations: violations}
}

func (h *harness) seed(t *testing.T, account string, records ...types.CostRecord) {
	t.Helper()
	require.NoError(t, h.records.CommitBatch(t.Context(), types.CloudAWS, account, marchWindow, records))
}

func rec(account, service, resource string, amount int64, tags types.Tags) types.CostRecord {
	return types.CostRecord{
		Cloud:         types.CloudAWS,
		AccountID:     account,
		Service:       service,
		ResourceID:    resource,
		Tags:          tags,
		PeriodStart:   marchWindow.Start,
		PeriodEnd:     marchWindow.Start.AddDate(0, 0, 1),
		AmountMinor:   amount,
		Currency:      "USD",
		IngestedAt:    marchWindow.Start,
		SourceBatchID: "b1",
	}
}

func TestUnit_Governance_ResourceAttributePolicy(t *testing.T) {
	h := newHarness(t, inventoryStub{
		"i-gpu":  {ResourceID: "i-gpu", GPUPresent: true, InstanceType: "p4d.24xlarge"},
		"i-tiny": {ResourceID: "i-tiny", InstanceType: "t3.micro"},
	})
	h.seed(t, "A1",
		rec("A1", "EC2", "i-gpu", 90000, nil),
		rec("A1", "EC2", "i-tiny", 100, nil),
		rec("A1", "EC2", "i-unknown", 200, nil), // no inventory entry
	)

	policy := types.Policy{
		ID: "gpu-review", Name: "GPU instances need approval",
		Kind: types.PolicyResourceAttribute, Severity: types.SeverityHigh,
		Status: types.PolicyActive, AttributeName: "gpu_present", AttributeEquals: "true",
	}
	report, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	v, err := h.violations.FindBySubject(t.Context(), "gpu-review", "i-gpu")
	require.NoError(t, err)
	assert.Equal(t, types.ViolationOpen, v.Status)
	assert.Equal(t, types.SeverityHigh, v.Severity)
	assert.Equal(t, "A1", v.AccountID)
}

func TestUnit_Governance_SpendThresholdPolicy(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "A1", rec("A1", "EC2", "i-1", 150000, nil))
	h.seed(t, "A2", rec("A2", "EC2", "i-2", 50000, nil))

	policy := types.Policy{
		ID: "account-cap", Name: "Account monthly cap",
		Kind: types.PolicySpendThreshold, Severity: types.SeverityCritical,
		Status: types.PolicyActive, ThresholdMinor: 100000,
	}
	report, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created, "only the account over the cap")

	v, err := h.violations.FindBySubject(t.Context(), "account-cap", "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", v.AccountID)

	_, err = h.violations.FindBySubject(t.Context(), "account-cap", "A2")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUnit_Governance_TagPresencePolicy(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "A1",
		rec("A1", "EC2", "i-tagged", 100, types.Tags{"team": "backend"}),
		rec("A1", "EC2", "i-bare", 200, nil),
		rec("A1", "S3", "", 300, nil), // no resource identity, no subject
	)

	policy := types.Policy{
		ID: "require-team", Name: "Resources must carry a team tag",
		Kind: types.PolicyTagPresence, Severity: types.SeverityMedium,
		Status: types.PolicyActive, RequiredTag: "team",
	}
	report, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	_, err = h.violations.FindBySubject(t.Context(), "require-team", "i-bare")
	assert.NoError(t, err)
}

func TestUnit_Governance_ReRunIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "A1", rec("A1", "EC2", "i-bare", 200, nil))

	policy := types.Policy{
		ID: "require-team", Name: "Resources must carry a team tag",
		Kind: types.PolicyTagPresence, Severity: types.SeverityLow,
		Status: types.PolicyActive, RequiredTag: "team",
	}
	first, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Zero(t, second.Created, "second cycle creates nothing new")
	assert.Equal(t, 1, second.Existing)

	all, err := h.violations.List(t.Context(), types.ViolationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUnit_Governance_ApprovedViolationNotRecreated(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "A1", rec("A1", "EC2", "i-bare", 200, nil))

	policy := types.Policy{
		ID: "require-team", Name: "Resources must carry a team tag",
		Kind: types.PolicyTagPresence, Severity: types.SeverityLow,
		Status: types.PolicyActive, RequiredTag: "team",
	}
	_, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)

	v, err := h.violations.FindBySubject(t.Context(), "require-team", "i-bare")
	require.NoError(t, err)
	v.Status = types.ViolationApproved
	require.NoError(t, h.violations.Update(t.Context(), v))

	report, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Zero(t, report.Created, "an approved exception stays approved")

	got, err := h.violations.FindBySubject(t.Context(), "require-team", "i-bare")
	require.NoError(t, err)
	assert.Equal(t, types.ViolationApproved, got.Status)
}

func TestUnit_Governance_DisabledPolicySkipped(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "A1", rec("A1", "EC2", "i-bare", 200, nil))

	policy := types.Policy{
		ID: "require-team", Name: "Resources must carry a team tag",
		Kind: types.PolicyTagPresence, Severity: types.SeverityLow,
		Status: types.PolicyDisabled, RequiredTag: "team",
	}
	report, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Disabled)
	assert.Zero(t, report.Created)
}

func TestUnit_Governance_ScopedPolicy(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "A1", rec("A1", "EC2", "i-1", 150000, nil))
	h.seed(t, "A2", rec("A2", "EC2", "i-2", 150000, nil))

	policy := types.Policy{
		ID: "prod-cap", Name: "Prod account cap",
		Kind: types.PolicySpendThreshold, Severity: types.SeverityHigh,
		Status: types.PolicyActive, ThresholdMinor: 100000,
		Scope: types.Scope{Accounts: []string{"A1"}},
	}
	report, err := h.engine.Evaluate(t.Context(), []types.Policy{policy}, marchWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created, "A2 is outside the policy scope")
}

func TestUnit_Governance_RejectsBadWindow(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.engine.Evaluate(t.Context(), nil, types.TimeRange{})
	assert.ErrorIs(t, err, types.ErrInvalidPeriod)
}
