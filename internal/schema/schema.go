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

// Package schema holds the JSON Schema that drives extraction. The document
// is process-wide and singular: a save fully replaces the previous schema for
// all subsequent extractions. A missing or unreadable schema must never block
// extraction, so loads fall back to the built-in default.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Doc is a JSON-Schema-shaped document (type, properties, required).
// The store performs no conformance validation beyond "is a mapping";
// whether the LLM honours it is the extraction client's concern.
type Doc map[string]any

// LoadInfo reports how a load was satisfied, for observability. The fallback
// itself is deliberate behaviour, not an error.
type LoadInfo struct {
	UsedDefault bool
	Reason      string // set when UsedDefault is true
}

// ErrEmptyDoc is returned by Save when the document is nil.
var ErrEmptyDoc = errors.New("schema document must be a non-empty object")

// Store persists the active schema as a single row in Postgres. The upsert
// replaces the whole document in one statement, so a concurrent read sees
// either the old or the new schema in full, never a partial write.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates the schema store and ensures its table exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS parsing_schema (
			id         SMALLINT PRIMARY KEY CHECK (id = 1),
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("ensure parsing_schema table: %w", err)
	}
	return s, nil
}

// Load returns the persisted schema, or the built-in default when none is
// stored or the stored document is unreadable. Load never fails: extraction
// must not be blocked by a missing or corrupt schema.
func (s *Store) Load(ctx context.Context) (Doc, LoadInfo) {
	var doc Doc
	err := s.pool.QueryRow(ctx, `SELECT doc FROM parsing_schema WHERE id = 1`).Scan(&doc)
	switch {
	case err == pgx.ErrNoRows:
		return DefaultSchema(), LoadInfo{UsedDefault: true, Reason: "no schema stored"}
	case err != nil:
		slog.Warn("schema load failed, using default", "error", err)
		return DefaultSchema(), LoadInfo{UsedDefault: true, Reason: fmt.Sprintf("load failed: %v", err)}
	case len(doc) == 0:
		return DefaultSchema(), LoadInfo{UsedDefault: true, Reason: "stored schema is empty"}
	}
	return doc, LoadInfo{}
}

// Save atomically replaces the persisted schema. Unlike Load, write failures
// are surfaced to the caller.
func (s *Store) Save(ctx context.Context, doc Doc) error {
	if len(doc) == 0 {
		return ErrEmptyDoc
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO parsing_schema (id, doc) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, doc)
	if err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	slog.Info("parsing schema updated", "fields", len(properties(doc)))
	return nil
}

func properties(doc Doc) map[string]any {
	props, _ := doc["properties"].(map[string]any)
	return props
}

// DefaultSchema returns the built-in commercial-offer schema. Callers get a
// fresh copy each time so a mutated document cannot leak back into later
// loads.
func DefaultSchema() Doc {
	return Doc{
		"type": "object",
		"properties": map[string]any{
			"company_name": map[string]any{
				"type":        "string",
				"description": "Name of the company making the offer",
			},
			"contact_email": map[string]any{
				"type":        "string",
				"description": "Contact email address",
			},
			"contact_name": map[string]any{
				"type":        "string",
				"description": "Name of the contact person",
			},
			"website_url": map[string]any{
				"type":        "string",
				"description": "Website URL being offered",
			},
			"offer_type": map[string]any{
				"type":        "string",
				"description": "Type of offer (e.g., partnership, advertising, guest_post, link_exchange, acquisition, sponsored)",
			},
			"price": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"amount":   map[string]any{"type": "number", "description": "Price amount if mentioned"},
					"currency": map[string]any{"type": "string", "description": "Currency code (USD, EUR, etc.)"},
				},
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Brief summary of what is being offered",
			},
			"metrics": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"monthly_traffic":  map[string]any{"type": "string", "description": "Monthly visitors/traffic if mentioned"},
					"domain_authority": map[string]any{"type": "number", "description": "DA score if mentioned"},
					"page_authority":   map[string]any{"type": "number", "description": "PA score if mentioned"},
				},
				"description": "Website metrics if mentioned in the email",
			},
		},
		"required": []any{"company_name", "offer_type"},
	}
}
