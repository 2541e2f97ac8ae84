// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package handlers exposes the query surface over HTTP. Handlers parse and
// reply; all cost math stays in the domain engines.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-obvious/server/request"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/costplane/costplane/app/types"
)

const formatCSV = "csv"

// timeNow is swapped out in tests.
var timeNow = time.Now

// parseWindow reads the from/to query parameters, accepting dates or RFC3339
// timestamps. Both are required; an unbounded query over the whole store is
// never what a caller wants.
func parseWindow(r *http.Request) (types.TimeRange, error) {
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		return types.TimeRange{}, errors.Wrap(types.ErrInvalidPeriod, "from: "+err.Error())
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		return types.TimeRange{}, errors.Wrap(types.ErrInvalidPeriod, "to: "+err.Error())
	}
	window := types.TimeRange{Start: from, End: to}
	if !window.Valid() {
		return types.TimeRange{}, errors.Wrapf(types.ErrInvalidPeriod, "window %s..%s", from, to)
	}
	return window, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing")
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// parseScope reads the clouds/accounts/services list parameters and repeated
// tag=key:value pairs.
func parseScope(r *http.Request) (types.Scope, error) {
	q := r.URL.Query()
	scope := types.Scope{
		Accounts: splitList(q.Get("accounts")),
		Services: splitList(q.Get("services")),
	}
	for _, raw := range splitList(q.Get("clouds")) {
		cloud := types.ParseCloud(raw)
		if cloud == types.CloudOther && !strings.EqualFold(raw, string(types.CloudOther)) {
			return types.Scope{}, errors.Wrapf(types.ErrInvalidData, "unknown cloud %q", raw)
		}
		scope.Clouds = append(scope.Clouds, cloud)
	}
	for _, pair := range q["tag"] {
		key, value, found := strings.Cut(pair, ":")
		if !found || key == "" {
			return types.Scope{}, errors.Wrapf(types.ErrInvalidData, "tag filter %q, want key:value", pair)
		}
		if scope.Tags == nil {
			scope.Tags = map[string]string{}
		}
		scope.Tags[strings.ToLower(key)] = value
	}
	return scope, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == formatCSV
}

// replyError maps domain errors onto status codes.
func replyError(r *http.Request, w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, types.ErrInvalidPeriod),
		errors.Is(err, types.ErrInvalidData),
		errors.Is(err, types.ErrInvalidConfig),
		errors.Is(err, types.ErrInvalidAllocationConfig):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	request.Reply(r, w, map[string]string{"error": err.Error()}, status)
}

func replyCSV(w http.ResponseWriter, name string, render func() error) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := render(); err != nil {
		log.Error().Err(err).Str("export", name).Msg("csv render failed mid-stream")
	}
}
