// Copyright (c) 2026 Offerdesk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"
	"strconv"

	"github.com/offerdesk/parser/internal/models"
	"github.com/offerdesk/parser/internal/store"
)

// ServeListEmails returns a filtered, paginated email listing.
func (h *Handler) ServeListEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.EmailFilter{
		Status:   q.Get("status"),
		Page:     1,
		PageSize: 20,
	}

	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "unknown status: "+filter.Status)
		return
	}
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		filter.AccountID = id
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			filter.Page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 100 {
			filter.PageSize = n
		}
	}

	emails, total, err := h.records.ListEmails(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if emails == nil {
		emails = []models.Email{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"emails":    emails,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// ServeGetEmail returns one email with its parsed and corrected data.
func (h *Handler) ServeGetEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}

	email, err := h.records.GetEmail(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if email == nil {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}

	writeJSON(w, http.StatusOK, email)
}

// ServeDeleteEmail removes one email.
func (h *Handler) ServeDeleteEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}

	email, err := h.records.GetEmail(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if email == nil {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}

	if err := h.records.DeleteEmail(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Email deleted", "email_id": id})
}

// ServeEmailStats returns email counts grouped by status.
func (h *Handler) ServeEmailStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.records.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"by_status": counts})
}
