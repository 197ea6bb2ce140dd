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
	"strings"
	"testing"
	"time"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func messageJSON(t *testing.T, msg gmailMessage) string {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	return string(data)
}

// TestParseGmailMessage_SinglePart verifies a simple text/plain message.
func TestParseGmailMessage_SinglePart(t *testing.T) {
	raw := messageJSON(t, gmailMessage{
		ID:           "msg-1",
		ThreadID:     "thread-1",
		InternalDate: "1767955800000", // 2026-01-09 10:50:00 UTC
		Payload: gmailPayload{
			MimeType: "text/plain",
			Headers: []gmailHeader{
				{Name: "Subject", Value: "Guest Post Offer"},
				{Name: "From", Value: "SEO Agency Team <marketing@seoagency.io>"},
				{Name: "Reply-To", Value: "replies@seoagency.io"},
			},
			Body: gmailBody{Data: b64("Hello,\n\nWe offer $150 per guest post.")},
		},
	})

	email, err := parseGmailMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parseGmailMessage: %v", err)
	}

	if email.MessageID != "msg-1" || email.ThreadID != "thread-1" {
		t.Errorf("ids = %q/%q", email.MessageID, email.ThreadID)
	}
	if email.Subject != "Guest Post Offer" {
		t.Errorf("subject = %q", email.Subject)
	}
	if email.Sender != "marketing@seoagency.io" {
		t.Errorf("sender = %q", email.Sender)
	}
	if email.SenderName != "SEO Agency Team" {
		t.Errorf("sender name = %q", email.SenderName)
	}
	if email.Headers["Reply-To"] != "replies@seoagency.io" {
		t.Errorf("headers = %v", email.Headers)
	}
	if !strings.Contains(email.BodyText, "$150 per guest post") {
		t.Errorf("body = %q", email.BodyText)
	}

	want := time.UnixMilli(1767955800000).UTC()
	if !email.ReceivedAt.Equal(want) {
		t.Errorf("received at = %v, want %v", email.ReceivedAt, want)
	}
}

// TestParseGmailMessage_Multipart verifies text and HTML bodies are pulled
// from a nested MIME tree.
func TestParseGmailMessage_Multipart(t *testing.T) {
	raw := messageJSON(t, gmailMessage{
		ID: "msg-2",
		Payload: gmailPayload{
			MimeType: "multipart/alternative",
			Headers:  []gmailHeader{{Name: "From", Value: "buyer@webflippers.com"}},
			Parts: []gmailPayload{
				{MimeType: "text/plain; charset=UTF-8", Body: gmailBody{Data: b64("plain body")}},
				{MimeType: "text/html; charset=UTF-8", Body: gmailBody{Data: b64("<p>html body</p>")}},
			},
		},
	})

	email, err := parseGmailMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parseGmailMessage: %v", err)
	}

	if email.BodyText != "plain body" {
		t.Errorf("text body = %q", email.BodyText)
	}
	if email.BodyHTML != "<p>html body</p>" {
		t.Errorf("html body = %q", email.BodyHTML)
	}
	// Bare address without display name.
	if email.Sender != "buyer@webflippers.com" || email.SenderName != "" {
		t.Errorf("sender = %q / %q", email.Sender, email.SenderName)
	}
}

// TestParseGmailMessage_MissingID verifies messages without an ID are
// rejected.
func TestParseGmailMessage_MissingID(t *testing.T) {
	if _, err := parseGmailMessage(strings.NewReader(`{"payload": {}}`)); err == nil {
		t.Fatal("expected error for message without id")
	}
}

// TestDecodeBody_MalformedData verifies malformed base64 degrades to an
// empty body rather than an error.
func TestDecodeBody_MalformedData(t *testing.T) {
	if got := decodeBody("!!!not-base64!!!"); got != "" {
		t.Errorf("decodeBody = %q, want empty", got)
	}
	// Padded variant still decodes.
	padded := base64.URLEncoding.EncodeToString([]byte("padded content"))
	if got := decodeBody(padded); got != "padded content" {
		t.Errorf("decodeBody = %q", got)
	}
}
