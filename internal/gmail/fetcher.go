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

// Package gmail retrieves messages from the Gmail REST API for connected
// accounts and converts them into email records ready for extraction.
package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/offerdesk/parser/internal/models"
)

// DefaultBaseURL is the production Gmail API endpoint.
const DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// Fetcher retrieves full email messages from the Gmail API. The HTTP client
// is passed per call because each account authenticates with its own OAuth
// token.
type Fetcher struct {
	baseURL string
}

// NewFetcher creates a Gmail message fetcher.
func NewFetcher(baseURL string) *Fetcher {
	return &Fetcher{baseURL: baseURL}
}

// FetchMessage retrieves the full content of a message in the authenticated
// account's mailbox. Returns (nil, nil) when the message no longer exists.
func (f *Fetcher) FetchMessage(ctx context.Context, client *http.Client, messageID string) (*models.Email, error) {
	url := fmt.Sprintf("%s/users/me/messages/%s?format=full", f.baseURL, messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("message not found (may have been deleted)", "message_id", messageID)
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail API returned HTTP %d for message %s", resp.StatusCode, messageID)
	}

	email, err := parseGmailMessage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	return email, nil
}
