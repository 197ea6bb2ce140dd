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

// Package api exposes the extraction pipeline over HTTP: schema management,
// single and batch parsing, corrections, email browsing, and account
// administration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/offerdesk/parser/internal/batch"
	"github.com/offerdesk/parser/internal/lifecycle"
	"github.com/offerdesk/parser/internal/models"
	"github.com/offerdesk/parser/internal/schema"
	"github.com/offerdesk/parser/internal/seed"
	"github.com/offerdesk/parser/internal/store"
)

// Records is the slice of the store the HTTP layer reads and administers.
type Records interface {
	ListEmails(ctx context.Context, f store.EmailFilter) ([]models.Email, int, error)
	GetEmail(ctx context.Context, id int64) (*models.Email, error)
	DeleteEmail(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[string]int, error)

	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	CreateAccount(ctx context.Context, a *models.Account) (int64, error)
	DeleteAccount(ctx context.Context, id int64) error
	CountEmailsForAccount(ctx context.Context, id int64) (int, error)

	CreateEmail(ctx context.Context, e *models.Email) (int64, error)
	ClearAll(ctx context.Context) error
}

// SchemaStore manages the persisted extraction schema.
type SchemaStore interface {
	Load(ctx context.Context) (schema.Doc, schema.LoadInfo)
	Save(ctx context.Context, doc schema.Doc) error
}

// ParseService runs single-email operations.
type ParseService interface {
	ParseOne(ctx context.Context, id int64) (*lifecycle.Outcome, error)
	Correct(ctx context.Context, id int64, corrected map[string]any) (*lifecycle.CorrectionReport, error)
}

// BatchService runs bounded batch parses.
type BatchService interface {
	Run(ctx context.Context, limit int) (*batch.Report, error)
}

// Pinger reports backend liveness for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the pipeline's HTTP API.
type Handler struct {
	records Records
	schemas SchemaStore
	parser  ParseService
	batches BatchService

	db    Pinger // optional
	redis Pinger // optional
}

// NewHandler creates the API handler. db and redis are optional health-check
// probes.
func NewHandler(records Records, schemas SchemaStore, parser ParseService, batches BatchService, db, redis Pinger) *Handler {
	return &Handler{
		records: records,
		schemas: schemas,
		parser:  parser,
		batches: batches,
		db:      db,
		redis:   redis,
	}
}

// writeJSON sends a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError sends a JSON error body: {"error": "..."}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeParseError maps lifecycle errors onto HTTP statuses.
func writeParseError(w http.ResponseWriter, err error) {
	var extractionErr *lifecycle.ExtractionError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrNoContent), errors.Is(err, lifecycle.ErrEmptyCorrection):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrAlreadyParsing):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &extractionErr):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ServeHealth reports process and backend liveness.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			status["database"] = "unreachable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(r.Context()); err != nil {
			status["redis"] = "unreachable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["redis"] = "ok"
		}
	}

	writeJSON(w, code, status)
}

// ServeSeed loads demo data into an empty database.
func (h *Handler) ServeSeed(w http.ResponseWriter, r *http.Request) {
	result, err := seed.Run(r.Context(), h.records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ServeClearSeed wipes all emails and accounts. Development reset only.
func (h *Handler) ServeClearSeed(w http.ResponseWriter, r *http.Request) {
	if err := h.records.ClearAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "All data cleared"})
}
