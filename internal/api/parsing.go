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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/offerdesk/parser/internal/schema"
)

// ServeGetSchema returns the active extraction schema.
func (h *Handler) ServeGetSchema(w http.ResponseWriter, r *http.Request) {
	doc, info := h.schemas.Load(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":     doc,
		"is_default": info.UsedDefault,
	})
}

// ServeUpdateSchema replaces the active extraction schema. The body wraps the
// document: {"schema": {...}}.
func (h *Handler) ServeUpdateSchema(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Schema schema.Doc `json:"schema"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if len(body.Schema) == 0 {
		writeError(w, http.StatusBadRequest, "schema is required in request body")
		return
	}

	if err := h.schemas.Save(r.Context(), body.Schema); err != nil {
		if errors.Is(err, schema.ErrEmptyDoc) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Schema updated successfully",
		"schema":  body.Schema,
	})
}

// ServeParse runs extraction for one email.
func (h *Handler) ServeParse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}

	outcome, err := h.parser.ParseOne(r.Context(), id)
	if err != nil {
		writeParseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"email_id":    outcome.EmailID,
		"parsed_data": outcome.ParsedData,
		"model":       outcome.Model,
		"usage":       outcome.Usage,
	})
}

// ServeParseBatch parses up to count pending emails. Body: {"count": n}.
func (h *Handler) ServeParseBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Count int `json:"count"`
	}
	if r.Body != nil {
		// An empty body means "use the default batch size".
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	report, err := h.batches.Run(r.Context(), body.Count)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ServeCorrect saves a human correction for a parsed email. Body:
// {"corrected_data": {...}}.
func (h *Handler) ServeCorrect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid email id")
		return
	}

	var body struct {
		CorrectedData map[string]any `json:"corrected_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	report, err := h.parser.Correct(r.Context(), id, body.CorrectedData)
	if err != nil {
		writeParseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Correction saved",
		"email_id": report.EmailID,
		"diff":     report.Diff,
	})
}
