// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import "strings"

// Scope is a filter expression over cost records. Budgets, allocations, and
// aggregation queries all restrict their input with a Scope. An empty Scope
// matches everything.
//
// Fields combine with AND; values within a field combine with OR. Tag matches
// require every listed key to be present with the given value (keys are
// compared lower-cased).
type Scope struct {
	Clouds   []Cloud           `yaml:"clouds,omitempty" json:"clouds,omitempty"`
	Accounts []string          `yaml:"accounts,omitempty" json:"accounts,omitempty"`
	Services []string          `yaml:"services,omitempty" json:"services,omitempty"`
	Tags     map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Matches reports whether the record falls inside the scope. Records pending
// currency conversion never match; they are invisible to every read path
// until a rate arrives.
func (s Scope) Matches(r *CostRecord) bool {
	if r.PendingConversion {
		return false
	}
	if len(s.Clouds) > 0 && !containsCloud(s.Clouds, r.Cloud) {
		return false
	}
	if len(s.Accounts) > 0 && !containsString(s.Accounts, r.AccountID) {
		return false
	}
	if len(s.Services) > 0 && !containsString(s.Services, r.Service) {
		return false
	}
	for k, want := range s.Tags {
		got, ok := r.Tags.Get(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the scope places no restriction at all.
func (s Scope) IsEmpty() bool {
	return len(s.Clouds) == 0 && len(s.Accounts) == 0 && len(s.Services) == 0 && len(s.Tags) == 0
}

func containsCloud(cs []Cloud, c Cloud) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}
