// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package build carries version metadata stamped in at link time.
package build

import "github.com/go-obvious/server"

// Overridden via -ldflags at release build time.
var (
	Rev  = "unknown"
	Tag  = "dev"
	Time = "unknown"
)

var (
	AuthorName  = "CostPlane"
	AuthorEmail = "support@costplane.io"
	Copyright   = "Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved."
)

// GetVersion returns the human-readable version string.
func GetVersion() string {
	return Tag + " (" + Rev + ")"
}

// Version returns the version block the HTTP server exposes.
func Version() *server.ServerVersion {
	return &server.ServerVersion{
		Revision: Rev,
		Tag:      Tag,
		Time:     Time,
	}
}
