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

// Package models defines the data structures shared across the parsing service.
package models

import "time"

// EmailStatus tracks where an email sits in the extraction lifecycle.
type EmailStatus string

const (
	// StatusPending means the email has been ingested but not yet parsed.
	StatusPending EmailStatus = "pending"
	// StatusParsing means an extraction attempt is in flight.
	StatusParsing EmailStatus = "parsing"
	// StatusParsed means extraction succeeded and parsed_data is present.
	StatusParsed EmailStatus = "parsed"
	// StatusReviewed means a human correction has been saved.
	StatusReviewed EmailStatus = "reviewed"
	// StatusFailed means the last extraction attempt failed.
	StatusFailed EmailStatus = "failed"
)

// ValidStatus reports whether s is one of the known lifecycle states.
func ValidStatus(s string) bool {
	switch EmailStatus(s) {
	case StatusPending, StatusParsing, StatusParsed, StatusReviewed, StatusFailed:
		return true
	}
	return false
}

// ChangeType classifies a single field-level difference between the machine
// extraction and a human correction.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// DiffEntry records one field-level change between parsed and corrected data.
type DiffEntry struct {
	Field      string     `json:"field"`
	ChangeType ChangeType `json:"change_type"`
	OldValue   any        `json:"old_value"`
	NewValue   any        `json:"new_value"`
}

// Email is a stored email record with its extraction state.
type Email struct {
	ID        int64 `json:"id"`
	AccountID int64 `json:"account_id"`

	// Source identifiers
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id,omitempty"`

	// Content
	Subject    string            `json:"subject"`
	Sender     string            `json:"sender"`
	SenderName string            `json:"sender_name,omitempty"`
	BodyText   string            `json:"body_text"`
	BodyHTML   string            `json:"body_html,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`

	// Lifecycle
	Status       EmailStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`

	// Extraction output
	ParsedData   map[string]any `json:"parsed_data,omitempty"`
	ParsingModel string         `json:"parsing_model,omitempty"`
	ParsedAt     *time.Time     `json:"parsed_at,omitempty"`

	// Human correction
	CorrectedData  map[string]any `json:"corrected_data,omitempty"`
	CorrectionDiff []DiffEntry    `json:"correction_diff,omitempty"`
	CorrectedAt    *time.Time     `json:"corrected_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasBody reports whether the email has text content to parse.
func (e *Email) HasBody() bool {
	return e.BodyText != ""
}
