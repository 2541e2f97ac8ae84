// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-obvious/server"
	"github.com/go-obvious/server/api"
	"github.com/go-obvious/server/request"

	"github.com/costplane/costplane/app/domain/aggregate"
	"github.com/costplane/costplane/app/domain/export"
	"github.com/costplane/costplane/app/domain/report"
	"github.com/costplane/costplane/app/types"
)

// QueryAPI serves aggregation queries and the month-to-date overview.
type QueryAPI struct {
	api.Service
	engine  *aggregate.Engine
	summary *report.Builder
}

func NewQueryAPI(base string, engine *aggregate.Engine, summary *report.Builder) *QueryAPI {
	a := &QueryAPI{
		engine:  engine,
		summary: summary,
		Service: api.Service{
			APIName: "query",
			Mounts:  map[string]*chi.Mux{},
		},
	}
	a.Service.Mounts[base] = a.Routes()
	return a
}

func (a *QueryAPI) Register(app server.Server) error {
	return a.Service.Register(app)
}

func (a *QueryAPI) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/aggregate", a.GetAggregate)
	r.Get("/summary", a.GetSummary)
	return r
}

// GetAggregate handles GET /aggregate?group_by=...&from=...&to=... plus
// optional scope filters, returning JSON or CSV (?format=csv).
func (a *QueryAPI) GetAggregate(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		replyError(r, w, err)
		return
	}
	scope, err := parseScope(r)
	if err != nil {
		replyError(r, w, err)
		return
	}

	result, err := a.engine.Aggregate(r.Context(), aggregate.Query{
		Scope:   scope,
		GroupBy: types.GroupBy(r.URL.Query().Get("group_by")),
		Range:   window,
	})
	if err != nil {
		replyError(r, w, err)
		return
	}

	if wantsCSV(r) {
		replyCSV(w, "aggregate.csv", func() error { return export.WriteAggregate(w, result) })
		return
	}
	request.Reply(r, w, result, http.StatusOK)
}

// GetSummary handles GET /summary, the month-to-date overview. An optional
// as_of parameter pins the evaluation date for reproducible reports.
func (a *QueryAPI) GetSummary(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r)
	if err != nil {
		replyError(r, w, err)
		return
	}

	asOf := timeNow()
	if v := r.URL.Query().Get("as_of"); v != "" {
		if asOf, err = parseTime(v); err != nil {
			replyError(r, w, err)
			return
		}
	}

	summary, err := a.summary.MonthToDate(r.Context(), scope, asOf)
	if err != nil {
		replyError(r, w, err)
		return
	}

	if wantsCSV(r) {
		replyCSV(w, "summary.csv", func() error { return export.WriteSummary(w, summary) })
		return
	}
	request.Reply(r, w, summary, http.StatusOK)
}
