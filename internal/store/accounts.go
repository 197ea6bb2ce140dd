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

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/offerdesk/parser/internal/models"
)

const accountColumns = `id, email, display_name, access_token, refresh_token,
	token_expiry, is_active, last_sync, last_history_id, created_at, updated_at`

// CreateAccount inserts a connected Gmail account and returns its ID.
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO gmail_accounts
			(email, display_name, access_token, refresh_token, token_expiry, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, a.Email, a.DisplayName, a.AccessToken, a.RefreshToken, nullableTime(a.TokenExpiry), a.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return id, nil
}

// GetAccount retrieves an account by ID. Returns (nil, nil) when no record
// exists.
func (s *Store) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM gmail_accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// ListAccounts returns all connected accounts ordered by email.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM gmail_accounts ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccountToken replaces the stored OAuth tokens after a refresh.
func (s *Store) UpdateAccountToken(ctx context.Context, id int64, accessToken, refreshToken string, expiry time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE gmail_accounts
		SET access_token = $1, refresh_token = $2, token_expiry = $3, updated_at = NOW()
		WHERE id = $4
	`, accessToken, refreshToken, expiry, id)
	return err
}

// TouchAccountSync records a completed mailbox sync and the latest Gmail
// history ID for incremental catch-up.
func (s *Store) TouchAccountSync(ctx context.Context, id int64, historyID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE gmail_accounts
		SET last_sync = NOW(), last_history_id = $1, updated_at = NOW()
		WHERE id = $2
	`, historyID, id)
	return err
}

// DeleteAccount removes an account and all of its emails.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete account: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM emails WHERE account_id = $1`, id); err != nil {
		return fmt.Errorf("delete account emails: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM gmail_accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return tx.Commit(ctx)
}

// ClearAll removes every email and account. Development reset only.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM emails`); err != nil {
		return fmt.Errorf("clear emails: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM gmail_accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	return tx.Commit(ctx)
}

// CountEmailsForAccount returns how many emails are stored for an account.
func (s *Store) CountEmailsForAccount(ctx context.Context, id int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM emails WHERE account_id = $1`, id).Scan(&n)
	return n, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var expiry *time.Time
	err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.AccessToken, &a.RefreshToken,
		&expiry, &a.IsActive, &a.LastSync, &a.LastHistoryID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expiry != nil {
		a.TokenExpiry = *expiry
	}
	return &a, nil
}

func scanAccountRow(rows pgx.Rows) (*models.Account, error) {
	var a models.Account
	var expiry *time.Time
	if err := rows.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.AccessToken, &a.RefreshToken,
		&expiry, &a.IsActive, &a.LastSync, &a.LastHistoryID,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if expiry != nil {
		a.TokenExpiry = *expiry
	}
	return &a, nil
}
