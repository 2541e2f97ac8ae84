// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type options struct {
	level string
	sink  io.Writer
}

// Option configures NewLogger.
type Option func(*options)

// WithLevel sets the log level by name ("trace" ... "panic").
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithSink redirects output, primarily for tests. Defaults to stderr.
func WithSink(w io.Writer) Option {
	return func(o *options) { o.sink = w }
}

// NewLogger builds the process logger. Output is JSON lines with RFC3339
// timestamps; callers propagate it through contexts rather than importing a
// global.
func NewLogger(opts ...Option) (*zerolog.Logger, error) {
	o := options{level: "info", sink: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	level, err := zerolog.ParseLevel(o.level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", o.level)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	logger := zerolog.New(o.sink).Level(level).With().Timestamp().Logger()
	return &logger, nil
}
