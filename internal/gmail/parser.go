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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/offerdesk/parser/internal/models"
)

// gmailMessage mirrors the subset of the Gmail API message resource the
// pipeline needs.
type gmailMessage struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"threadId"`
	HistoryID    string       `json:"historyId"`
	InternalDate string       `json:"internalDate"`
	Payload      gmailPayload `json:"payload"`
}

type gmailPayload struct {
	MimeType string        `json:"mimeType"`
	Headers  []gmailHeader `json:"headers"`
	Body     gmailBody     `json:"body"`
	Parts    []gmailPayload `json:"parts"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailBody struct {
	Data string `json:"data"`
}

// parseGmailMessage converts a Gmail API message resource into an email
// record. The record carries no account or status fields; the caller fills
// those in before persisting.
func parseGmailMessage(r io.Reader) (*models.Email, error) {
	var msg gmailMessage
	if err := json.NewDecoder(r).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message has no id")
	}

	email := &models.Email{
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		Headers:   map[string]string{},
	}

	for _, h := range msg.Payload.Headers {
		email.Headers[h.Name] = h.Value
	}

	email.Subject = email.Headers["Subject"]

	if from := email.Headers["From"]; from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			email.Sender = addr.Address
			email.SenderName = addr.Name
		} else {
			email.Sender = from
		}
	}

	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil && ms > 0 {
		email.ReceivedAt = time.UnixMilli(ms).UTC()
	} else {
		email.ReceivedAt = time.Now().UTC()
	}

	text, html := extractBodies(msg.Payload)
	email.BodyText = text
	email.BodyHTML = html

	return email, nil
}

// extractBodies walks the MIME tree and returns the first text/plain and
// text/html bodies found.
func extractBodies(p gmailPayload) (text, html string) {
	if p.Body.Data != "" {
		decoded := decodeBody(p.Body.Data)
		switch {
		case strings.HasPrefix(p.MimeType, "text/plain"):
			return decoded, ""
		case strings.HasPrefix(p.MimeType, "text/html"):
			return "", decoded
		}
	}

	for _, part := range p.Parts {
		t, h := extractBodies(part)
		if text == "" {
			text = t
		}
		if html == "" {
			html = h
		}
		if text != "" && html != "" {
			break
		}
	}
	return text, html
}

// decodeBody decodes Gmail's URL-safe base64 body encoding. Returns the
// empty string on malformed input rather than failing the whole message.
func decodeBody(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		// Some providers pad the data despite the URL-safe alphabet.
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}
