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

// Package prompt renders the system and user prompts for schema-driven email
// extraction. Building is pure: identical inputs always produce byte-identical
// prompts, which keeps extraction variance attributable to the model alone.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/offerdesk/parser/internal/schema"
)

// MaxUserPromptChars bounds the user prompt, counted in runes so a cut never
// lands mid-character. Anything beyond it is cut and marked, never silently
// dropped. Roughly 5000 tokens.
const MaxUserPromptChars = 20000

// TruncationMarker is appended when the user prompt exceeds the budget.
const TruncationMarker = "\n\n[Email truncated due to length]"

// Metadata carries the email fields that accompany the body in the user
// prompt.
type Metadata struct {
	Subject     string
	SenderEmail string
	SenderName  string
	ReceivedAt  time.Time
	Headers     map[string]string
}

// BuildSystemPrompt renders the extraction instructions with the schema
// embedded verbatim. Map keys serialise in sorted order, so the rendering is
// stable for a given document.
func BuildSystemPrompt(doc schema.Doc) string {
	schemaJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		// A Doc is plain JSON-compatible data; marshalling only fails on
		// values that could not have come from a decoded document.
		schemaJSON = []byte("{}")
	}

	return `You are an expert email parser specialized in extracting structured data from commercial offer emails.

Your task is to analyze the email content AND metadata to extract information according to the provided JSON schema.

## Input Format:
You will receive email metadata (subject, sender info, date) followed by the email body.
Use ALL available information to extract the required fields.

## Output Requirements:
1. Return ONLY valid JSON that matches the schema structure
2. Use null for any fields not found in the email
3. Be precise with numbers, currencies, and dates
4. Extract exact values when possible, don't paraphrase
5. For nested objects, include all sub-fields even if null
6. The contact_email should come from the sender's email address if not explicitly mentioned in body
7. The contact_name should come from the sender's name if not explicitly mentioned in body

## JSON Schema to follow:
` + string(schemaJSON) + `

## Important:
- Do NOT include any text before or after the JSON
- Do NOT wrap the JSON in markdown code blocks
- Ensure all required fields from the schema are present
- Use the email metadata (From, Subject, Date) to supplement missing information`
}

// BuildUserPrompt renders the metadata block followed by the raw body,
// truncated to MaxUserPromptChars with an explicit marker when too long.
func BuildUserPrompt(meta Metadata, body string) string {
	var sb strings.Builder
	sb.WriteString("## Email Metadata:\n")

	if meta.Subject != "" {
		sb.WriteString(fmt.Sprintf("\n**Subject:** %s", meta.Subject))
	}

	switch {
	case meta.SenderName != "" && meta.SenderEmail != "":
		sb.WriteString(fmt.Sprintf("\n**From:** %s <%s>", meta.SenderName, meta.SenderEmail))
	case meta.SenderEmail != "":
		sb.WriteString(fmt.Sprintf("\n**From:** %s", meta.SenderEmail))
	case meta.SenderName != "":
		sb.WriteString(fmt.Sprintf("\n**From:** %s", meta.SenderName))
	}

	if !meta.ReceivedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("\n**Date:** %s", meta.ReceivedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	}

	if v := headerValue(meta.Headers, "reply-to"); v != "" {
		sb.WriteString(fmt.Sprintf("\n**Reply-To:** %s", v))
	}
	if v := headerValue(meta.Headers, "cc"); v != "" {
		sb.WriteString(fmt.Sprintf("\n**CC:** %s", v))
	}
	if v := headerValue(meta.Headers, "organization"); v != "" {
		sb.WriteString(fmt.Sprintf("\n**Organization:** %s", v))
	}

	sb.WriteString("\n\n## Email Body:\n")
	sb.WriteString(body)

	full := sb.String()
	if utf8.RuneCountInString(full) > MaxUserPromptChars {
		runes := []rune(full)
		full = string(runes[:MaxUserPromptChars]) + TruncationMarker
	}
	return full
}

// headerValue looks up a header case-insensitively. Source headers may arrive
// with any capitalisation depending on the mail provider.
func headerValue(headers map[string]string, name string) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[name]; ok {
		return v
	}
	// Sorted scan keeps the result stable when several variants fold to the
	// same name.
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return headers[k]
		}
	}
	return ""
}
