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
	"net/http"
	"net/mail"
	"time"

	"github.com/offerdesk/parser/internal/models"
)

// accountView decorates an account with its stored email count.
type accountView struct {
	models.Account
	EmailCount int `json:"email_count"`
}

// ServeListAccounts returns all connected accounts.
func (h *Handler) ServeListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.records.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		n, err := h.records.CountEmailsForAccount(r.Context(), a.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		views = append(views, accountView{Account: a, EmailCount: n})
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": views})
}

// ServeCreateAccount connects a new Gmail account with its OAuth tokens.
func (h *Handler) ServeCreateAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email        string     `json:"email"`
		DisplayName  string     `json:"display_name"`
		AccessToken  string     `json:"access_token"`
		RefreshToken string     `json:"refresh_token"`
		TokenExpiry  *time.Time `json:"token_expiry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}
	if _, err := mail.ParseAddress(body.Email); err != nil {
		writeError(w, http.StatusBadRequest, "valid email address is required")
		return
	}

	account := &models.Account{
		Email:        body.Email,
		DisplayName:  body.DisplayName,
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		IsActive:     true,
	}
	if body.TokenExpiry != nil {
		account.TokenExpiry = *body.TokenExpiry
	}

	id, err := h.records.CreateAccount(r.Context(), account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	account.ID = id

	writeJSON(w, http.StatusCreated, account)
}

// ServeDeleteAccount disconnects an account and removes its emails.
func (h *Handler) ServeDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := h.records.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	if err := h.records.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Account deleted", "account_id": id})
}
