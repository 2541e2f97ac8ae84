// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"math"
)

// AllocationDimension names what cost is being attributed to.
type AllocationDimension string

const (
	AllocateByTeam    AllocationDimension = "team"
	AllocateByProduct AllocationDimension = "product"
)

// AllocationMethod selects how spend is split across the dimension.
type AllocationMethod string

const (
	AllocationTagBased        AllocationMethod = "tag"
	AllocationAccountBased    AllocationMethod = "account"
	AllocationFixedPercentage AllocationMethod = "fixed"
)

// UnallocatedKey is the bucket for spend that no rule could attribute: records
// missing the configured tag, or accounts absent from the account map. It is
// always reported, never dropped, so finance can reconcile allocated cost back
// to true total spend.
const UnallocatedKey = "Unallocated"

// SharesEpsilon is the tolerance when checking that fixed-percentage shares
// sum to 1.0.
const SharesEpsilon = 1e-6

// AllocationRule describes one chargeback split. Rules are owned by
// configuration and validated at load time; a rule that reaches the
// allocation engine is structurally sound.
type AllocationRule struct {
	Name      string              `yaml:"name" json:"name"`
	Dimension AllocationDimension `yaml:"dimension" json:"dimension"`
	Method    AllocationMethod    `yaml:"method" json:"method"`

	// TagKey is read for tag-based rules (compared lower-cased).
	TagKey string `yaml:"tag_key,omitempty" json:"tag_key,omitempty"`

	// AccountMap maps account IDs to dimension keys for account-based rules.
	AccountMap map[string]string `yaml:"account_map,omitempty" json:"account_map,omitempty"`

	// Shares maps dimension keys to fractions for fixed-percentage rules;
	// they must sum to 1 within SharesEpsilon.
	Shares map[string]float64 `yaml:"shares,omitempty" json:"shares,omitempty"`
}

// Validate rejects malformed rules at configuration load time. A share set
// that does not sum to one is a configuration error, never a runtime one.
func (r *AllocationRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule without a name", ErrInvalidAllocationConfig)
	}
	switch r.Dimension {
	case AllocateByTeam, AllocateByProduct:
	default:
		return fmt.Errorf("%w: rule %q has unknown dimension %q", ErrInvalidAllocationConfig, r.Name, r.Dimension)
	}
	switch r.Method {
	case AllocationTagBased:
		if r.TagKey == "" {
			return fmt.Errorf("%w: tag rule %q needs tag_key", ErrInvalidAllocationConfig, r.Name)
		}
	case AllocationAccountBased:
		if len(r.AccountMap) == 0 {
			return fmt.Errorf("%w: account rule %q needs account_map", ErrInvalidAllocationConfig, r.Name)
		}
	case AllocationFixedPercentage:
		if len(r.Shares) == 0 {
			return fmt.Errorf("%w: fixed rule %q needs shares", ErrInvalidAllocationConfig, r.Name)
		}
		var sum float64
		for key, share := range r.Shares {
			if share < 0 {
				return fmt.Errorf("%w: rule %q share %q is negative", ErrInvalidAllocationConfig, r.Name, key)
			}
			sum += share
		}
		if math.Abs(sum-1.0) > SharesEpsilon {
			return fmt.Errorf("%w: rule %q shares sum to %.9f, want 1.0", ErrInvalidAllocationConfig, r.Name, sum)
		}
	default:
		return fmt.Errorf("%w: rule %q has unknown method %q", ErrInvalidAllocationConfig, r.Name, r.Method)
	}
	return nil
}

// Allocation is the result of applying a rule over a scope: dimension key to
// amount, conserving the aggregate total to the minor unit.
type Allocation struct {
	Rule      string              `json:"rule"`
	Dimension AllocationDimension `json:"dimension"`
	Range     TimeRange           `json:"range"`
	Currency  string              `json:"currency"`

	// Amounts maps dimension key (including UnallocatedKey) to minor units.
	Amounts map[string]int64 `json:"amounts"`

	// TotalMinor equals the aggregate total for the same scope, exactly.
	TotalMinor int64 `json:"total_minor_units"`
}
