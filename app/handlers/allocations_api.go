// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-obvious/server"
	"github.com/go-obvious/server/api"
	"github.com/go-obvious/server/request"
	"github.com/pkg/errors"

	"github.com/costplane/costplane/app/config"
	"github.com/costplane/costplane/app/domain/allocate"
	"github.com/costplane/costplane/app/domain/export"
	"github.com/costplane/costplane/app/types"
)

// AllocationsAPI serves chargeback splits for the configured rules.
type AllocationsAPI struct {
	api.Service
	snap   *config.Snapshot
	engine *allocate.Engine
}

func NewAllocationsAPI(base string, snap *config.Snapshot, engine *allocate.Engine) *AllocationsAPI {
	a := &AllocationsAPI{
		snap:   snap,
		engine: engine,
		Service: api.Service{
			APIName: "allocations",
			Mounts:  map[string]*chi.Mux{},
		},
	}
	a.Service.Mounts[base] = a.Routes()
	return a
}

func (a *AllocationsAPI) Register(app server.Server) error {
	return a.Service.Register(app)
}

func (a *AllocationsAPI) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", a.ListRules)
	r.Get("/{rule}", a.GetAllocation)
	return r
}

// ListRules handles GET /, returning the configured rules so callers can
// discover what splits exist.
func (a *AllocationsAPI) ListRules(w http.ResponseWriter, r *http.Request) {
	request.Reply(r, w, a.snap.AllocationRules, http.StatusOK)
}

// GetAllocation handles GET /{rule}?from=...&to=... plus scope filters,
// returning the split as JSON or CSV.
func (a *AllocationsAPI) GetAllocation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "rule")
	rule := a.snap.AllocationRule(name)
	if rule == nil {
		replyError(r, w, errors.Wrapf(types.ErrNotFound, "allocation rule %q", name))
		return
	}

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

	alloc, err := a.engine.Allocate(r.Context(), rule, scope, window)
	if err != nil {
		replyError(r, w, err)
		return
	}

	if wantsCSV(r) {
		replyCSV(w, name+".csv", func() error { return export.WriteAllocation(w, alloc) })
		return
	}
	request.Reply(r, w, alloc, http.StatusOK)
}
