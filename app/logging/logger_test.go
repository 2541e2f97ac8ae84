// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/logging"
)

func TestUnit_Logging_NewLogger_Level(t *testing.T) {
	logger, err := logging.NewLogger(logging.WithLevel("warn"))
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestUnit_Logging_NewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := logging.NewLogger(logging.WithLevel("loud"))
	assert.Error(t, err)
}

func TestUnit_Logging_NewLogger_WritesJSONToSink(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.WithLevel("info"), logging.WithSink(&buf))
	require.NoError(t, err)

	logger.Info().Str("cloud", "aws").Msg("synced")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "synced", line["message"])
	assert.Equal(t, "aws", line["cloud"])

	logger.Debug().Msg("hidden")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")), "debug suppressed at info level")
}
