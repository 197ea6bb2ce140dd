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

package prompt

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/offerdesk/parser/internal/schema"
)

// TestBuildSystemPrompt_EmbedsSchema verifies the schema document appears
// verbatim in the instructions.
func TestBuildSystemPrompt_EmbedsSchema(t *testing.T) {
	doc := schema.Doc{
		"type": "object",
		"properties": map[string]any{
			"company_name": map[string]any{"type": "string"},
		},
		"required": []any{"company_name"},
	}

	got := BuildSystemPrompt(doc)

	if !strings.Contains(got, `"company_name"`) {
		t.Error("schema field missing from system prompt")
	}
	if !strings.Contains(got, "JSON Schema to follow:") {
		t.Error("schema section header missing")
	}
	if !strings.Contains(got, "Return ONLY valid JSON") {
		t.Error("output instructions missing")
	}
}

// TestBuildSystemPrompt_Deterministic verifies identical documents render
// byte-identical prompts.
func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	doc := schema.DefaultSchema()
	first := BuildSystemPrompt(doc)
	for i := 0; i < 10; i++ {
		if got := BuildSystemPrompt(schema.DefaultSchema()); got != first {
			t.Fatalf("render %d differs from first", i)
		}
	}
}

// TestBuildUserPrompt_MetadataBlock verifies the metadata section layout.
func TestBuildUserPrompt_MetadataBlock(t *testing.T) {
	meta := Metadata{
		Subject:     "Partnership Opportunity",
		SenderEmail: "john@techblog.com",
		SenderName:  "John Smith",
		ReceivedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Headers: map[string]string{
			"Reply-To":     "partnerships@techblog.com",
			"Organization": "TechBlog Network",
		},
	}

	got := BuildUserPrompt(meta, "Hi there, we'd like to partner.")

	for _, want := range []string{
		"## Email Metadata:",
		"**Subject:** Partnership Opportunity",
		"**From:** John Smith <john@techblog.com>",
		"**Date:** 2026-03-14 09:30:00 UTC",
		"**Reply-To:** partnerships@techblog.com",
		"**Organization:** TechBlog Network",
		"## Email Body:\nHi there, we'd like to partner.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q\n%s", want, got)
		}
	}
}

// TestBuildUserPrompt_SenderFallbacks verifies the From line degrades
// gracefully when name or address is missing.
func TestBuildUserPrompt_SenderFallbacks(t *testing.T) {
	tests := []struct {
		name string
		meta Metadata
		want string
	}{
		{"email only", Metadata{SenderEmail: "a@b.com"}, "**From:** a@b.com"},
		{"name only", Metadata{SenderName: "Alice"}, "**From:** Alice"},
		{"both", Metadata{SenderName: "Alice", SenderEmail: "a@b.com"}, "**From:** Alice <a@b.com>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildUserPrompt(tt.meta, "body")
			if !strings.Contains(got, tt.want) {
				t.Errorf("prompt missing %q\n%s", tt.want, got)
			}
		})
	}

	// No sender at all: no From line.
	if got := BuildUserPrompt(Metadata{Subject: "s"}, "body"); strings.Contains(got, "**From:**") {
		t.Error("From line rendered with no sender")
	}
}

// TestBuildUserPrompt_HeadersCaseInsensitive verifies header lookup ignores
// capitalisation.
func TestBuildUserPrompt_HeadersCaseInsensitive(t *testing.T) {
	meta := Metadata{
		Headers: map[string]string{"reply-to": "lower@case.com", "CC": "team@example.com"},
	}

	got := BuildUserPrompt(meta, "body")
	if !strings.Contains(got, "**Reply-To:** lower@case.com") {
		t.Error("lowercase reply-to header not found")
	}
	if !strings.Contains(got, "**CC:** team@example.com") {
		t.Error("uppercase CC header not found")
	}
}

// TestBuildUserPrompt_Truncation verifies oversized bodies are cut at the
// budget with an explicit marker.
func TestBuildUserPrompt_Truncation(t *testing.T) {
	body := strings.Repeat("offer details ", 3000) // well past the budget

	got := BuildUserPrompt(Metadata{Subject: "Big"}, body)

	if !strings.HasSuffix(got, TruncationMarker) {
		t.Error("truncation marker missing")
	}
	want := MaxUserPromptChars + utf8.RuneCountInString(TruncationMarker)
	if n := utf8.RuneCountInString(got); n != want {
		t.Errorf("rune count = %d, want %d", n, want)
	}
}

// TestBuildUserPrompt_TruncationOnRuneBoundary verifies the cut never splits
// a multibyte character: the budget counts characters, and the truncated
// prompt stays valid UTF-8.
func TestBuildUserPrompt_TruncationOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("prix proposé: 500€ — détails à négocier ", 1000)

	got := BuildUserPrompt(Metadata{Subject: "Gros"}, body)

	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatal("truncation marker missing")
	}
	if !utf8.ValidString(got) {
		t.Error("truncated prompt is not valid UTF-8")
	}
	want := MaxUserPromptChars + utf8.RuneCountInString(TruncationMarker)
	if n := utf8.RuneCountInString(got); n != want {
		t.Errorf("rune count = %d, want %d", n, want)
	}
}

// TestBuildUserPrompt_ShortBodyUntouched verifies short prompts carry no
// marker.
func TestBuildUserPrompt_ShortBodyUntouched(t *testing.T) {
	got := BuildUserPrompt(Metadata{Subject: "Small"}, "short body")
	if strings.Contains(got, TruncationMarker) {
		t.Error("truncation marker present on short prompt")
	}
}

// TestBuildUserPrompt_Deterministic verifies repeated builds are
// byte-identical even with multiple headers.
func TestBuildUserPrompt_Deterministic(t *testing.T) {
	meta := Metadata{
		Subject:     "Sponsored Content",
		SenderEmail: "ads@brandpromo.net",
		Headers: map[string]string{
			"Reply-To": "a@x.com",
			"reply-To": "b@x.com",
			"CC":       "c@x.com",
		},
	}

	first := BuildUserPrompt(meta, "body")
	for i := 0; i < 20; i++ {
		if got := BuildUserPrompt(meta, "body"); got != first {
			t.Fatalf("render %d differs from first", i)
		}
	}
}
