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

// Package store provides the Postgres-backed record store for emails and
// connected Gmail accounts. Every status transition is a single UPDATE
// statement, so individual record changes are all-or-nothing.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides CRUD operations for email and account records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a record store backed by the given Postgres pool.
// It ensures the emails and gmail_accounts tables exist on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure record store schema: %w", err)
	}
	slog.Info("record store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gmail_accounts (
			id              BIGSERIAL PRIMARY KEY,
			email           TEXT NOT NULL UNIQUE,
			display_name    TEXT NOT NULL DEFAULT '',
			access_token    TEXT NOT NULL DEFAULT '',
			refresh_token   TEXT NOT NULL DEFAULT '',
			token_expiry    TIMESTAMPTZ,
			is_active       BOOLEAN NOT NULL DEFAULT TRUE,
			last_sync       TIMESTAMPTZ,
			last_history_id TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			updated_at      TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS emails (
			id              BIGSERIAL PRIMARY KEY,
			account_id      BIGINT NOT NULL DEFAULT 0,
			message_id      TEXT NOT NULL UNIQUE,
			thread_id       TEXT NOT NULL DEFAULT '',
			subject         TEXT NOT NULL DEFAULT '',
			sender          TEXT NOT NULL DEFAULT '',
			sender_name     TEXT NOT NULL DEFAULT '',
			body_text       TEXT NOT NULL DEFAULT '',
			body_html       TEXT NOT NULL DEFAULT '',
			headers         JSONB,
			received_at     TIMESTAMPTZ NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			error_message   TEXT NOT NULL DEFAULT '',
			parsed_data     JSONB,
			parsing_model   TEXT NOT NULL DEFAULT '',
			parsed_at       TIMESTAMPTZ,
			corrected_data  JSONB,
			correction_diff JSONB,
			corrected_at    TIMESTAMPTZ,
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			updated_at      TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);
		CREATE INDEX IF NOT EXISTS idx_emails_account ON emails(account_id);
		CREATE INDEX IF NOT EXISTS idx_emails_received ON emails(received_at DESC);
	`)
	return err
}
