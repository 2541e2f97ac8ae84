// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"io"
)

// fieldFilterWriter strips named top-level fields from JSON log lines before
// forwarding them, used to keep account identifiers and credentials out of
// shipped logs.
type fieldFilterWriter struct {
	out    io.Writer
	fields map[string]struct{}
}

// NewFieldFilterWriter wraps out, removing the given top-level JSON fields
// from every line written through it. Non-JSON writes pass through untouched.
func NewFieldFilterWriter(out io.Writer, fields []string) io.Writer {
	w := &fieldFilterWriter{out: out, fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		w.fields[f] = struct{}{}
	}
	return w
}

// Write implements io.Writer. It reports the input length on success so
// zerolog never sees a short write for bytes the filter dropped.
func (w *fieldFilterWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var entry map[string]any
	if err := json.Unmarshal(p, &entry); err != nil {
		return w.passthrough(p)
	}
	for field := range w.fields {
		delete(entry, field)
	}
	filtered, err := json.Marshal(entry)
	if err != nil {
		return w.passthrough(p)
	}
	if bytes.HasSuffix(p, []byte("\n")) {
		filtered = append(filtered, '\n')
	}

	if n, err := w.out.Write(filtered); err != nil {
		return n, err
	}
	return len(p), nil
}

func (w *fieldFilterWriter) passthrough(p []byte) (int, error) {
	if n, err := w.out.Write(p); err != nil {
		return n, err
	}
	return len(p), nil
}
