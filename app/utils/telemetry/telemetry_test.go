// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestUnit_Telemetry_CountersAccumulate(t *testing.T) {
	CountSync("aws", OutcomeOK)
	CountSync("aws", OutcomeOK)
	CountSync("gcp", OutcomeFailed)

	assert.InDelta(t, 2.0, testutil.ToFloat64(syncsTotal.WithLabelValues("aws", OutcomeOK)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(syncsTotal.WithLabelValues("gcp", OutcomeFailed)), 1e-9)
	assert.Zero(t, testutil.ToFloat64(syncsTotal.WithLabelValues("azure", OutcomeOK)))
}

func TestUnit_Telemetry_RecordAndViolationCounts(t *testing.T) {
	CountRecordsCommitted("aws", 3)
	CountRecordsCommitted("aws", 2)
	CountPendingConverted(4)
	CountViolations("pol-untagged", 2)

	assert.InDelta(t, 5.0, testutil.ToFloat64(recordsCommittedTotal.WithLabelValues("aws")), 1e-9)
	assert.InDelta(t, 4.0, testutil.ToFloat64(pendingConvertedTotal), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(violationsTotal.WithLabelValues("pol-untagged")), 1e-9)
}
