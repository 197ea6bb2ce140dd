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

// Package extract invokes the LLM against the active schema and turns its
// response into a structured result. Extraction failure is a normal,
// observable outcome: transport, auth, and decode errors are folded into the
// result rather than propagated, so callers see one uniform failure surface.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/offerdesk/parser/internal/openai"
	"github.com/offerdesk/parser/internal/prompt"
	"github.com/offerdesk/parser/internal/schema"
)

// Usage re-exports the provider's token counters so callers don't need to
// import the client package.
type Usage = openai.Usage

// Input carries the email content and metadata for one extraction.
type Input struct {
	Body        string
	Schema      schema.Doc
	Subject     string
	SenderEmail string
	SenderName  string
	ReceivedAt  time.Time
	Headers     map[string]string
}

// Result is the outcome of a single extraction attempt.
type Result struct {
	Success bool
	Data    map[string]any
	Model   string
	Usage   openai.Usage

	// Failure details. RawResponse holds the verbatim model output when it
	// could not be decoded as JSON — needed to debug malformed responses.
	Error       string
	RawResponse string
}

// Extractor runs schema-driven extraction through an OpenAI client.
type Extractor struct {
	client *openai.Client
}

// New creates an extractor. The client is constructed once at process start
// with explicit configuration; there is no lazy initialisation here.
func New(client *openai.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract builds the prompts, calls the model in JSON-object mode, and
// decodes the response. The model is not guaranteed to honour the schema's
// required list or nesting, so no conformance validation happens beyond
// "is it valid JSON" — repair, if wanted, is a caller-side concern.
func (e *Extractor) Extract(ctx context.Context, in Input) Result {
	systemPrompt := prompt.BuildSystemPrompt(in.Schema)
	userPrompt := prompt.BuildUserPrompt(prompt.Metadata{
		Subject:     in.Subject,
		SenderEmail: in.SenderEmail,
		SenderName:  in.SenderName,
		ReceivedAt:  in.ReceivedAt,
		Headers:     in.Headers,
	}, in.Body)

	slog.Debug("extracting email",
		"subject", truncate(in.Subject, 50),
		"prompt_chars", len(userPrompt),
	)

	content, usage, err := e.client.ChatJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		slog.Error("extraction call failed", "error", err)
		return Result{
			Model: e.client.Model(),
			Error: err.Error(),
		}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		slog.Error("model response is not valid JSON", "error", err)
		return Result{
			Model:       e.client.Model(),
			Usage:       usage,
			Error:       fmt.Sprintf("invalid JSON response from model: %v", err),
			RawResponse: content,
		}
	}

	slog.Info("extraction succeeded",
		"model", e.client.Model(),
		"total_tokens", usage.TotalTokens,
	)

	return Result{
		Success: true,
		Data:    data,
		Model:   e.client.Model(),
		Usage:   usage,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
