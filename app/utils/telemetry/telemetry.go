// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry exposes the engine-side Prometheus counters: sync cycle
// outcomes, committed records, resolved pending conversions, and governance
// findings. HTTP request metrics live in app/http/middleware; this package
// covers the work that happens off the request path.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sync outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

var (
	syncsTotal            *prometheus.CounterVec
	recordsCommittedTotal *prometheus.CounterVec
	pendingConvertedTotal prometheus.Counter
	violationsTotal       *prometheus.CounterVec
	registerOnce          sync.Once
)

// counters lazily registers the engine metrics, tolerating duplicate
// registration when several components share a process in tests.
func counters() {
	registerOnce.Do(func() {
		syncsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costplane",
				Name:      "syncs_total",
				Help:      "Count of per-cloud sync outcomes.",
			},
			[]string{"cloud", "outcome"},
		)
		recordsCommittedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costplane",
				Name:      "cost_records_committed_total",
				Help:      "Count of canonical cost records committed, by cloud.",
			},
			[]string{"cloud"},
		)
		pendingConvertedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "costplane",
				Name:      "pending_conversions_resolved_total",
				Help:      "Count of records converted after a currency rate arrived.",
			},
		)
		violationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "costplane",
				Name:      "violations_detected_total",
				Help:      "Count of new governance violations, by policy.",
			},
			[]string{"policy"},
		)
		for _, c := range []prometheus.Collector{
			syncsTotal, recordsCommittedTotal, pendingConvertedTotal, violationsTotal,
		} {
			if err := prometheus.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}

// CountSync records one per-cloud sync outcome.
func CountSync(cloud, outcome string) {
	counters()
	syncsTotal.WithLabelValues(cloud, outcome).Inc()
}

// CountRecordsCommitted records n canonical records landing for a cloud.
func CountRecordsCommitted(cloud string, n int) {
	counters()
	recordsCommittedTotal.WithLabelValues(cloud).Add(float64(n))
}

// CountPendingConverted records n pending records resolved by a rate refresh.
func CountPendingConverted(n int) {
	counters()
	pendingConvertedTotal.Add(float64(n))
}

// CountViolations records n new findings for a policy.
func CountViolations(policyID string, n int) {
	counters()
	violationsTotal.WithLabelValues(policyID).Add(float64(n))
}
