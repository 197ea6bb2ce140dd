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

// Package lifecycle owns the per-email status state machine. A parse attempt
// always ends in a terminal, observable status — parsed or failed — never an
// unhandled crash that leaves the record stuck in parsing.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/offerdesk/parser/internal/events"
	"github.com/offerdesk/parser/internal/extract"
	"github.com/offerdesk/parser/internal/models"
	"github.com/offerdesk/parser/internal/schema"
)

var (
	// ErrNotFound means the referenced email does not exist.
	ErrNotFound = errors.New("email not found")
	// ErrNoContent means the email has no body text to parse. Rejected
	// before any state change.
	ErrNoContent = errors.New("email has no content to parse")
	// ErrAlreadyParsing means a concurrent parse attempt holds the lock.
	ErrAlreadyParsing = errors.New("email is already being parsed")
	// ErrEmptyCorrection means the submitted correction carries no data.
	ErrEmptyCorrection = errors.New("corrected data must be a non-empty object")
)

// ExtractionError reports a parse attempt that ended in failed status. The
// failure is already recorded on the email record when this is returned.
type ExtractionError struct {
	EmailID int64
	Message string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for email %d: %s", e.EmailID, e.Message)
}

// EmailStore is the slice of the record store the controller needs.
type EmailStore interface {
	GetEmail(ctx context.Context, id int64) (*models.Email, error)
	MarkParsing(ctx context.Context, id int64) error
	SaveParseSuccess(ctx context.Context, id int64, data map[string]any, model string) error
	SaveParseFailure(ctx context.Context, id int64, errMsg string) error
	SaveCorrection(ctx context.Context, id int64, corrected map[string]any, diff []models.DiffEntry) error
}

// SchemaSource supplies the active extraction schema. Load must not fail;
// implementations fall back to a default document.
type SchemaSource interface {
	Load(ctx context.Context) (schema.Doc, schema.LoadInfo)
}

// Extractor runs one schema-driven extraction.
type Extractor interface {
	Extract(ctx context.Context, in extract.Input) extract.Result
}

// Locker provides per-email mutual exclusion for parse attempts.
type Locker interface {
	Acquire(ctx context.Context, emailID int64) (bool, error)
	Release(ctx context.Context, emailID int64) error
}

// OutcomePublisher receives extraction outcome events.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event events.ExtractionEvent) error
}

// Outcome summarises a successful parse.
type Outcome struct {
	EmailID    int64          `json:"email_id"`
	ParsedData map[string]any `json:"parsed_data"`
	Model      string         `json:"model"`
	Usage      extract.Usage  `json:"usage"`
}

// CorrectionReport summarises a saved correction.
type CorrectionReport struct {
	EmailID   int64              `json:"email_id"`
	Original  map[string]any     `json:"original_parsed"`
	Corrected map[string]any     `json:"corrected_data"`
	Diff      []models.DiffEntry `json:"diff"`
}

// Controller drives email status transitions.
type Controller struct {
	store     EmailStore
	schemas   SchemaSource
	extractor Extractor
	locks     Locker           // optional
	publisher OutcomePublisher // optional
}

// Config holds the controller's dependencies. Locks and Publisher may be nil
// (CLI tools and tests run without Redis).
type Config struct {
	Store     EmailStore
	Schemas   SchemaSource
	Extractor Extractor
	Locks     Locker
	Publisher OutcomePublisher
}

// New creates a lifecycle controller.
func New(cfg Config) *Controller {
	return &Controller{
		store:     cfg.Store,
		schemas:   cfg.Schemas,
		extractor: cfg.Extractor,
		locks:     cfg.Locks,
		publisher: cfg.Publisher,
	}
}

// ParseOne runs the full parse cycle for a single email: precondition checks,
// transition to parsing, extraction, and persistence of the result. Parsing
// is re-entrant — an already-parsed, failed, or reviewed email restarts the
// cycle, and a fresh success clears any prior human correction.
func (c *Controller) ParseOne(ctx context.Context, id int64) (*Outcome, error) {
	email, err := c.store.GetEmail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load email %d: %w", id, err)
	}
	if email == nil {
		return nil, ErrNotFound
	}

	// Precondition, not a state transition: rejected before any change.
	if !email.HasBody() {
		return nil, ErrNoContent
	}

	if c.locks != nil {
		acquired, err := c.locks.Acquire(ctx, id)
		if err != nil {
			// The lock is an extra guard on top of the sequential batch
			// contract; a lock-store outage should not stop parsing.
			slog.Warn("parse lock unavailable, proceeding", "email_id", id, "error", err)
		} else if !acquired {
			return nil, ErrAlreadyParsing
		} else {
			defer func() {
				if err := c.locks.Release(context.WithoutCancel(ctx), id); err != nil {
					slog.Warn("parse lock release failed", "email_id", id, "error", err)
				}
			}()
		}
	}

	// Persist the in-flight state before the LLM call so concurrent
	// observers see it.
	if err := c.store.MarkParsing(ctx, id); err != nil {
		return nil, fmt.Errorf("mark email %d parsing: %w", id, err)
	}

	return c.runExtraction(ctx, email)
}

// runExtraction performs the extraction attempt with a recovery boundary:
// any fault is converted into failed status with the fault text recorded.
func (c *Controller) runExtraction(ctx context.Context, email *models.Email) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("unexpected fault during parse: %v", r)
			slog.Error("parse attempt panicked", "email_id", email.ID, "fault", r)
			c.recordFailure(ctx, email.ID, msg)
			outcome, err = nil, &ExtractionError{EmailID: email.ID, Message: msg}
		}
	}()

	doc, info := c.schemas.Load(ctx)
	if info.UsedDefault {
		slog.Info("using default schema", "email_id", email.ID, "reason", info.Reason)
	}

	result := c.extractor.Extract(ctx, extract.Input{
		Body:        email.BodyText,
		Schema:      doc,
		Subject:     email.Subject,
		SenderEmail: email.Sender,
		SenderName:  email.SenderName,
		ReceivedAt:  email.ReceivedAt,
		Headers:     email.Headers,
	})

	if !result.Success {
		c.recordFailure(ctx, email.ID, result.Error)
		return nil, &ExtractionError{EmailID: email.ID, Message: result.Error}
	}

	if err := c.store.SaveParseSuccess(ctx, email.ID, result.Data, result.Model); err != nil {
		// The attempt must still end in a terminal status, not linger in
		// parsing until the stale sweep finds it.
		c.recordFailure(ctx, email.ID, fmt.Sprintf("persist parse result: %v", err))
		return nil, fmt.Errorf("persist parse result for email %d: %w", email.ID, err)
	}

	c.publish(ctx, events.ExtractionEvent{
		EmailID: email.ID,
		Status:  string(models.StatusParsed),
		Model:   result.Model,
	})

	slog.Info("email parsed",
		"email_id", email.ID,
		"model", result.Model,
		"total_tokens", result.Usage.TotalTokens,
	)

	return &Outcome{
		EmailID:    email.ID,
		ParsedData: result.Data,
		Model:      result.Model,
		Usage:      result.Usage,
	}, nil
}

// Correct saves a human correction, recomputing the diff against the current
// parsed data. The diff is derived data and is never mutated independently.
func (c *Controller) Correct(ctx context.Context, id int64, corrected map[string]any) (*CorrectionReport, error) {
	email, err := c.store.GetEmail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load email %d: %w", id, err)
	}
	if email == nil {
		return nil, ErrNotFound
	}
	if len(corrected) == 0 {
		return nil, ErrEmptyCorrection
	}

	original := email.ParsedData
	if original == nil {
		original = map[string]any{}
	}

	diff := Diff(original, corrected)
	if err := c.store.SaveCorrection(ctx, id, corrected, diff); err != nil {
		return nil, fmt.Errorf("save correction for email %d: %w", id, err)
	}

	slog.Info("correction saved", "email_id", id, "changes", len(diff))

	return &CorrectionReport{
		EmailID:   id,
		Original:  original,
		Corrected: corrected,
		Diff:      diff,
	}, nil
}

func (c *Controller) recordFailure(ctx context.Context, id int64, msg string) {
	if err := c.store.SaveParseFailure(ctx, id, msg); err != nil {
		slog.Error("failed to record parse failure", "email_id", id, "error", err)
	}
	c.publish(ctx, events.ExtractionEvent{
		EmailID: id,
		Status:  string(models.StatusFailed),
		Error:   msg,
	})
}

// publish emits an outcome event. Best effort: queue problems are logged,
// never surfaced as parse failures.
func (c *Controller) publish(ctx context.Context, event events.ExtractionEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishOutcome(ctx, event); err != nil {
		slog.Warn("outcome event publish failed", "email_id", event.EmailID, "error", err)
	}
}
