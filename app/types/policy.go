// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"time"
)

// PolicyKind discriminates the rule a policy evaluates.
type PolicyKind string

const (
	// PolicyResourceAttribute matches resources whose metadata attribute
	// equals a configured value (e.g. gpu_present=true).
	PolicyResourceAttribute PolicyKind = "resource_attribute"
	// PolicySpendThreshold matches accounts whose spend inside the policy
	// scope exceeds a threshold over the evaluation window.
	PolicySpendThreshold PolicyKind = "spend_threshold"
	// PolicyTagPresence matches resources whose cost records are missing a
	// required tag.
	PolicyTagPresence PolicyKind = "tag_presence"
)

// Severity ranks how urgent a violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// PolicyStatus gates evaluation. Disabling a policy stops new evaluation but
// never retracts violations it already produced.
type PolicyStatus string

const (
	PolicyActive   PolicyStatus = "active"
	PolicyDisabled PolicyStatus = "disabled"
)

// Policy is one governance rule, owned by configuration and read-only to the
// engine. The kind-specific fields form the predicate evaluated against the
// join of cost records and resource metadata.
type Policy struct {
	ID       string       `yaml:"id" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	Kind     PolicyKind   `yaml:"kind" json:"kind"`
	Severity Severity     `yaml:"severity" json:"severity"`
	Status   PolicyStatus `yaml:"status" json:"status"`

	// Scope restricts which records the policy looks at.
	Scope Scope `yaml:"scope,omitempty" json:"scope,omitempty"`

	// AttributeName/AttributeEquals drive resource_attribute policies.
	AttributeName   string `yaml:"attribute_name,omitempty" json:"attribute_name,omitempty"`
	AttributeEquals string `yaml:"attribute_equals,omitempty" json:"attribute_equals,omitempty"`

	// ThresholdMinor drives spend_threshold policies, in the organization
	// currency's minor units.
	ThresholdMinor int64 `yaml:"threshold_minor_units,omitempty" json:"threshold_minor_units,omitempty"`

	// RequiredTag drives tag_presence policies (compared lower-cased).
	RequiredTag string `yaml:"required_tag,omitempty" json:"required_tag,omitempty"`
}

// Active reports whether the policy should be evaluated.
func (p *Policy) Active() bool { return p.Status == PolicyActive }

// Validate rejects malformed policy predicates at configuration load time,
// before they can reach an evaluation cycle.
func (p *Policy) Validate() error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("%w: policy needs id and name", ErrInvalidPolicy)
	}
	switch p.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return fmt.Errorf("%w: policy %q has unknown severity %q", ErrInvalidPolicy, p.ID, p.Severity)
	}
	switch p.Status {
	case PolicyActive, PolicyDisabled:
	default:
		return fmt.Errorf("%w: policy %q has unknown status %q", ErrInvalidPolicy, p.ID, p.Status)
	}
	switch p.Kind {
	case PolicyResourceAttribute:
		if p.AttributeName == "" {
			return fmt.Errorf("%w: policy %q needs attribute_name", ErrInvalidPolicy, p.ID)
		}
	case PolicySpendThreshold:
		if p.ThresholdMinor <= 0 {
			return fmt.Errorf("%w: policy %q needs a positive threshold", ErrInvalidPolicy, p.ID)
		}
	case PolicyTagPresence:
		if p.RequiredTag == "" {
			return fmt.Errorf("%w: policy %q needs required_tag", ErrInvalidPolicy, p.ID)
		}
	default:
		return fmt.Errorf("%w: policy %q has unknown kind %q", ErrInvalidPolicy, p.ID, p.Kind)
	}
	return nil
}

// ViolationStatus tracks the approval workflow. The engine only ever creates
// open violations; every transition afterwards is an explicit user action.
type ViolationStatus string

const (
	ViolationOpen     ViolationStatus = "open"
	ViolationApproved ViolationStatus = "approved"
	ViolationRejected ViolationStatus = "rejected"
)

// Violation records one (policy, subject) pair that satisfied a predicate.
// The unique index over (policy_id, subject_id) is what makes re-running an
// evaluation cycle idempotent: a scan retried after a crash cannot spawn
// duplicates.
type Violation struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	PolicyID string `gorm:"uniqueIndex:idx_violation_subject;size:64" json:"policy_id"`

	// SubjectID is the resource ID for resource-scoped policies or the
	// account ID for spend thresholds.
	SubjectID string `gorm:"uniqueIndex:idx_violation_subject;size:256" json:"subject_id"`

	ResourceID string `gorm:"size:256" json:"resource_id,omitempty"`
	AccountID  string `gorm:"size:64" json:"account_id,omitempty"`

	Severity   Severity        `gorm:"size:16" json:"severity"`
	DetectedAt time.Time       `json:"detected_at"`
	Status     ViolationStatus `gorm:"size:16" json:"status"`

	// Detail is a human-readable account of why the predicate matched.
	Detail string `gorm:"size:512" json:"detail,omitempty"`
}
