// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-obvious/server"
	"github.com/go-obvious/server/api"
	"github.com/go-obvious/server/request"
	"github.com/pkg/errors"

	"github.com/costplane/costplane/app/config"
	"github.com/costplane/costplane/app/domain/budget"
	"github.com/costplane/costplane/app/domain/export"
	"github.com/costplane/costplane/app/types"
)

// BudgetsAPI serves budget statuses derived from the configured budgets and
// live spend.
type BudgetsAPI struct {
	api.Service
	snap    *config.Snapshot
	tracker *budget.Tracker
}

func NewBudgetsAPI(base string, snap *config.Snapshot, tracker *budget.Tracker) *BudgetsAPI {
	a := &BudgetsAPI{
		snap:    snap,
		tracker: tracker,
		Service: api.Service{
			APIName: "budgets",
			Mounts:  map[string]*chi.Mux{},
		},
	}
	a.Service.Mounts[base] = a.Routes()
	return a
}

func (a *BudgetsAPI) Register(app server.Server) error {
	return a.Service.Register(app)
}

func (a *BudgetsAPI) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", a.ListStatuses)
	r.Get("/{name}", a.GetStatus)
	return r
}

// ListStatuses handles GET /, evaluating every configured budget.
func (a *BudgetsAPI) ListStatuses(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		replyError(r, w, err)
		return
	}

	statuses, err := a.tracker.EvaluateAll(r.Context(), a.snap.Budgets, asOf)
	if err != nil {
		replyError(r, w, err)
		return
	}

	if wantsCSV(r) {
		replyCSV(w, "budgets.csv", func() error { return export.WriteBudgets(w, statuses) })
		return
	}
	request.Reply(r, w, statuses, http.StatusOK)
}

// GetStatus handles GET /{name} for a single budget.
func (a *BudgetsAPI) GetStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	b := a.snap.Budget(name)
	if b == nil {
		replyError(r, w, errors.Wrapf(types.ErrNotFound, "budget %q", name))
		return
	}

	asOf, err := asOfParam(r)
	if err != nil {
		replyError(r, w, err)
		return
	}

	status, err := a.tracker.Evaluate(r.Context(), b, asOf)
	if err != nil {
		replyError(r, w, err)
		return
	}
	request.Reply(r, w, status, http.StatusOK)
}

func asOfParam(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return time.Time{}, nil
	}
	asOf, err := parseTime(v)
	if err != nil {
		return time.Time{}, errors.Wrap(types.ErrInvalidData, "as_of: "+err.Error())
	}
	return asOf, nil
}
