// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-obvious/server"
	"github.com/go-obvious/server/api"
	"github.com/go-obvious/server/request"
	"github.com/pkg/errors"

	"github.com/costplane/costplane/app/types"
)

// ViolationsAPI serves the governance findings and their approval workflow.
type ViolationsAPI struct {
	api.Service
	store types.ViolationStore
}

func NewViolationsAPI(base string, store types.ViolationStore) *ViolationsAPI {
	a := &ViolationsAPI{
		store: store,
		Service: api.Service{
			APIName: "violations",
			Mounts:  map[string]*chi.Mux{},
		},
	}
	a.Service.Mounts[base] = a.Routes()
	return a
}

func (a *ViolationsAPI) Register(app server.Server) error {
	return a.Service.Register(app)
}

func (a *ViolationsAPI) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", a.List)
	r.Get("/{id}", a.Get)
	r.Patch("/{id}", a.UpdateStatus)
	return r
}

// List handles GET /?policy=...&status=...&severity=... A policy combined
// with a subject is a point lookup for that pair's finding in any status.
func (a *ViolationsAPI) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if policy, subject := q.Get("policy"), q.Get("subject"); policy != "" && subject != "" {
		v, err := a.store.FindBySubject(r.Context(), policy, subject)
		if err != nil {
			replyError(r, w, err)
			return
		}
		request.Reply(r, w, []types.Violation{*v}, http.StatusOK)
		return
	}
	filter := types.ViolationFilter{
		PolicyID: q.Get("policy"),
		Status:   types.ViolationStatus(q.Get("status")),
		Severity: types.Severity(q.Get("severity")),
	}
	violations, err := a.store.List(r.Context(), filter)
	if err != nil {
		replyError(r, w, err)
		return
	}
	request.Reply(r, w, violations, http.StatusOK)
}

// Get handles GET /{id}.
func (a *ViolationsAPI) Get(w http.ResponseWriter, r *http.Request) {
	v, err := a.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		replyError(r, w, err)
		return
	}
	request.Reply(r, w, v, http.StatusOK)
}

type violationPatch struct {
	Status types.ViolationStatus `json:"status"`
}

// UpdateStatus handles PATCH /{id}, the approve/reject workflow. Only the
// status is writable; findings themselves are engine-owned.
func (a *ViolationsAPI) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var patch violationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		replyError(r, w, errors.Wrap(types.ErrInvalidData, err.Error()))
		return
	}
	switch patch.Status {
	case types.ViolationOpen, types.ViolationApproved, types.ViolationRejected:
	default:
		replyError(r, w, errors.Wrapf(types.ErrInvalidData, "unknown status %q", patch.Status))
		return
	}

	v, err := a.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		replyError(r, w, err)
		return
	}
	v.Status = patch.Status
	if err := a.store.Update(r.Context(), v); err != nil {
		replyError(r, w, err)
		return
	}
	request.Reply(r, w, v, http.StatusOK)
}
