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
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/offerdesk/parser/internal/models"
)

const emailColumns = `id, account_id, message_id, thread_id, subject, sender,
	sender_name, body_text, body_html, headers, received_at, status,
	error_message, parsed_data, parsing_model, parsed_at, corrected_data,
	correction_diff, corrected_at, created_at, updated_at`

// EmailFilter narrows ListEmails results.
type EmailFilter struct {
	Status    string // empty = all
	AccountID int64  // 0 = all
	Page      int    // 1-based
	PageSize  int
}

// CreateEmail inserts a new email record and returns its ID.
// Duplicate message IDs are rejected by the unique constraint.
func (s *Store) CreateEmail(ctx context.Context, e *models.Email) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO emails
			(account_id, message_id, thread_id, subject, sender, sender_name,
			 body_text, body_html, headers, received_at, status,
			 parsed_data, parsing_model, parsed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, e.AccountID, e.MessageID, e.ThreadID, e.Subject, e.Sender, e.SenderName,
		e.BodyText, e.BodyHTML, e.Headers, e.ReceivedAt, statusOrPending(e.Status),
		e.ParsedData, e.ParsingModel, e.ParsedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert email: %w", err)
	}
	return id, nil
}

func statusOrPending(st models.EmailStatus) models.EmailStatus {
	if st == "" {
		return models.StatusPending
	}
	return st
}

// GetEmail retrieves a single email by ID. Returns (nil, nil) when no record
// exists.
func (s *Store) GetEmail(ctx context.Context, id int64) (*models.Email, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)
	return scanEmail(row)
}

// HasMessageID reports whether an email with the given source message ID is
// already stored. Used by the sync layer to skip duplicates.
func (s *Store) HasMessageID(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM emails WHERE message_id = $1)`, messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check message id: %w", err)
	}
	return exists, nil
}

// ListEmails returns a page of emails matching the filter, newest first,
// along with the total match count.
func (s *Store) ListEmails(ctx context.Context, f EmailFilter) ([]models.Email, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.AccountID != 0 {
		args = append(args, f.AccountID)
		conds = append(conds, fmt.Sprintf("account_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emails`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count emails: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`SELECT `+emailColumns+` FROM emails%s
		ORDER BY received_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	emails, err := collectEmails(rows)
	if err != nil {
		return nil, 0, err
	}
	return emails, total, nil
}

// ListPendingIDs returns up to limit IDs of emails in pending status,
// oldest first. The ordering is stable so repeated batch runs walk the
// backlog in insertion order.
func (s *Store) ListPendingIDs(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM emails
		WHERE status = 'pending'
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending emails: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByStatus returns the number of emails in each lifecycle state.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM emails GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// MarkParsing sets the status to parsing. Persisted before the LLM call so
// concurrent observers see the in-flight state.
func (s *Store) MarkParsing(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE emails
		SET status = 'parsing', updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// SaveParseSuccess stores a successful extraction. A fresh machine extraction
// invalidates prior human review, so all correction fields are cleared in the
// same statement.
func (s *Store) SaveParseSuccess(ctx context.Context, id int64, data map[string]any, model string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE emails
		SET status = 'parsed',
		    parsed_data = $1,
		    parsing_model = $2,
		    parsed_at = NOW(),
		    error_message = '',
		    corrected_data = NULL,
		    correction_diff = NULL,
		    corrected_at = NULL,
		    updated_at = NOW()
		WHERE id = $3
	`, data, model, id)
	return err
}

// SaveParseFailure records a failed extraction attempt. Prior parsed_data is
// left untouched so a failed re-parse does not lose an earlier success.
func (s *Store) SaveParseFailure(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE emails
		SET status = 'failed',
		    error_message = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, errMsg, id)
	return err
}

// SaveCorrection stores a human correction with its recomputed diff and moves
// the email to reviewed.
func (s *Store) SaveCorrection(ctx context.Context, id int64, corrected map[string]any, diff []models.DiffEntry) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE emails
		SET status = 'reviewed',
		    corrected_data = $1,
		    correction_diff = $2,
		    corrected_at = NOW(),
		    updated_at = NOW()
		WHERE id = $3
	`, corrected, diff, id)
	return err
}

// ResetStaleParsing moves emails stuck in parsing longer than olderThan to
// failed. Covers attempts interrupted by a crash, so no email is left in
// parsing with no further action possible.
func (s *Store) ResetStaleParsing(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE emails
		SET status = 'failed',
		    error_message = 'parse attempt interrupted: stale parsing state reset',
		    updated_at = NOW()
		WHERE status = 'parsing' AND updated_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reset stale parsing: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteEmail removes an email record.
func (s *Store) DeleteEmail(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM emails WHERE id = $1`, id)
	return err
}

// scanEmail scans a single row into an Email.
func scanEmail(row pgx.Row) (*models.Email, error) {
	var e models.Email
	err := row.Scan(
		&e.ID, &e.AccountID, &e.MessageID, &e.ThreadID, &e.Subject, &e.Sender,
		&e.SenderName, &e.BodyText, &e.BodyHTML, &e.Headers, &e.ReceivedAt,
		&e.Status, &e.ErrorMessage, &e.ParsedData, &e.ParsingModel, &e.ParsedAt,
		&e.CorrectedData, &e.CorrectionDiff, &e.CorrectedAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// collectEmails scans multiple rows into a slice of Emails.
func collectEmails(rows pgx.Rows) ([]models.Email, error) {
	var emails []models.Email
	for rows.Next() {
		var e models.Email
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.MessageID, &e.ThreadID, &e.Subject, &e.Sender,
			&e.SenderName, &e.BodyText, &e.BodyHTML, &e.Headers, &e.ReceivedAt,
			&e.Status, &e.ErrorMessage, &e.ParsedData, &e.ParsingModel, &e.ParsedAt,
			&e.CorrectedData, &e.CorrectionDiff, &e.CorrectedAt,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
