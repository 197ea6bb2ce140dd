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

package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/offerdesk/parser/internal/models"
)

const (
	// listPageSize bounds how many message IDs a single list call returns.
	listPageSize = 50

	// pageDelay spaces out list pages to stay well inside Gmail quota.
	pageDelay = 200 * time.Millisecond
)

// googleEndpoint is Google's OAuth2 token endpoint pair. Declared here to
// keep the dependency surface to the core oauth2 package.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// SyncStore is the subset of the email store the syncer needs.
type SyncStore interface {
	HasMessageID(ctx context.Context, messageID string) (bool, error)
	CreateEmail(ctx context.Context, email *models.Email) (int64, error)
	UpdateAccountToken(ctx context.Context, id int64, accessToken, refreshToken string, expiry time.Time) error
	TouchAccountSync(ctx context.Context, id int64, historyID string) error
}

// SyncResult summarizes one account sync pass.
type SyncResult struct {
	AccountEmail string `json:"account_email"`
	Fetched      int    `json:"fetched"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
}

// Syncer pulls recent messages for connected accounts into the store with
// pending status, skipping messages already ingested.
type Syncer struct {
	store        SyncStore
	fetcher      *Fetcher
	baseURL      string
	clientID     string
	clientSecret string
	lookback     time.Duration
}

// NewSyncer creates a syncer. lookback bounds how far back the message
// listing query reaches; zero means 7 days.
func NewSyncer(store SyncStore, fetcher *Fetcher, baseURL, clientID, clientSecret string, lookback time.Duration) *Syncer {
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	return &Syncer{
		store:        store,
		fetcher:      fetcher,
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		lookback:     lookback,
	}
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

// SyncAccount lists recent messages for one account and ingests any not yet
// stored. Individual message failures are counted, not fatal.
func (s *Syncer) SyncAccount(ctx context.Context, account *models.Account) (*SyncResult, error) {
	client, err := s.clientFor(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("authenticate account %s: %w", account.Email, err)
	}

	result := &SyncResult{AccountEmail: account.Email}
	query := fmt.Sprintf("newer_than:%dd", int(s.lookback.Hours()/24))
	lastHistoryID := ""

	pageToken := ""
	for {
		page, err := s.listPage(ctx, client, query, pageToken)
		if err != nil {
			return result, fmt.Errorf("list messages for %s: %w", account.Email, err)
		}

		for _, m := range page.Messages {
			exists, err := s.store.HasMessageID(ctx, m.ID)
			if err != nil {
				return result, fmt.Errorf("check message %s: %w", m.ID, err)
			}
			if exists {
				result.Skipped++
				continue
			}

			email, err := s.fetcher.FetchMessage(ctx, client, m.ID)
			if err != nil {
				slog.Error("failed to fetch message", "message_id", m.ID, "error", err)
				result.Failed++
				continue
			}
			if email == nil {
				result.Skipped++
				continue
			}

			email.AccountID = account.ID
			email.Status = models.StatusPending
			if _, err := s.store.CreateEmail(ctx, email); err != nil {
				slog.Error("failed to store message", "message_id", m.ID, "error", err)
				result.Failed++
				continue
			}
			result.Fetched++

			if lastHistoryID == "" {
				if hid, err := s.fetchHistoryID(ctx, client, m.ID); err == nil {
					lastHistoryID = hid
				}
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(pageDelay):
		}
	}

	if err := s.store.TouchAccountSync(ctx, account.ID, lastHistoryID); err != nil {
		slog.Warn("failed to record sync time", "account", account.Email, "error", err)
	}

	slog.Info("account sync complete",
		"account", account.Email,
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, nil
}

// clientFor builds an HTTP client that authenticates as the account,
// refreshing the access token when it has expired and persisting the
// refreshed credentials.
func (s *Syncer) clientFor(ctx context.Context, account *models.Account) (*http.Client, error) {
	conf := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     googleEndpoint,
	}

	tok := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		Expiry:       account.TokenExpiry,
	}

	src := conf.TokenSource(ctx, tok)
	fresh, err := src.Token()
	if err != nil {
		return nil, err
	}

	if fresh.AccessToken != account.AccessToken {
		refresh := fresh.RefreshToken
		if refresh == "" {
			refresh = account.RefreshToken
		}
		if err := s.store.UpdateAccountToken(ctx, account.ID, fresh.AccessToken, refresh, fresh.Expiry); err != nil {
			slog.Warn("failed to persist refreshed token", "account", account.Email, "error", err)
		}
	}

	return oauth2.NewClient(ctx, src), nil
}

func (s *Syncer) listPage(ctx context.Context, client *http.Client, query, pageToken string) (*listResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprintf("%d", listPageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	u := fmt.Sprintf("%s/users/me/messages?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail API returned HTTP %d", resp.StatusCode)
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	return &page, nil
}

// fetchHistoryID reads just the historyId of a message via a metadata fetch.
func (s *Syncer) fetchHistoryID(ctx context.Context, client *http.Client, messageID string) (string, error) {
	u := fmt.Sprintf("%s/users/me/messages/%s?format=minimal", s.baseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gmail API returned HTTP %d", resp.StatusCode)
	}

	var msg struct {
		HistoryID string `json:"historyId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", err
	}
	return msg.HistoryID, nil
}
