// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package healthz is a process-wide registry of named readiness checks,
// exposed as a standard /healthz endpoint. Components register a check at
// startup (database ping, source credentials); the endpoint fails fast on the
// first check that errors.
package healthz

import (
	"net/http"
	"sync"
)

// HealthCheck reports nil when the component is healthy. Checks run on every
// request, so keep them cheap.
type HealthCheck func() error

// HealthChecker exposes the registered checks as an HTTP handler.
type HealthChecker interface {
	EndpointHandler() http.HandlerFunc
}

var (
	h    *checker
	once sync.Once
)

// NewHealthz returns the singleton checker.
func NewHealthz() HealthChecker {
	once.Do(func() {
		h = &checker{}
	})
	return h
}

// Register adds a named check to the global registry. Registering the same
// name twice replaces the earlier check.
func Register(name string, fn HealthCheck) {
	chkr, ok := NewHealthz().(*checker)
	if !ok {
		panic("unexpected type mismatch")
	}
	chkr.add(name, fn)
}

type checker struct {
	mu     sync.Mutex
	checks map[string]HealthCheck
}

func (x *checker) add(name string, fn HealthCheck) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.checks == nil {
		x.checks = make(map[string]HealthCheck)
	}
	x.checks[name] = fn
}

// EndpointHandler returns 200 "ok" when every check passes, 500 with the
// failing check's name otherwise.
func (x *checker) EndpointHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		x.mu.Lock()
		defer x.mu.Unlock()
		for name, check := range x.checks {
			if err := check(); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(name + " failed: " + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
