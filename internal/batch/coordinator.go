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

// Package batch drives a bounded set of pending emails through the lifecycle
// controller. Items are processed sequentially — one LLM call in flight at a
// time — and each item's commit is independent: a later failure never rolls
// back an earlier item.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/offerdesk/parser/internal/lifecycle"
)

const (
	// DefaultLimit is used when the caller does not specify a batch size.
	DefaultLimit = 10
	// MaxLimit caps how many emails one batch run may process.
	MaxLimit = 100
)

// Parser is the single-email parse operation the coordinator re-invokes.
// Implemented by lifecycle.Controller.
type Parser interface {
	ParseOne(ctx context.Context, id int64) (*lifecycle.Outcome, error)
}

// PendingLister selects emails awaiting extraction.
type PendingLister interface {
	ListPendingIDs(ctx context.Context, limit int) ([]int64, error)
}

// ItemResult records one email's outcome within a batch.
type ItemResult struct {
	EmailID int64  `json:"email_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Report aggregates a completed batch run.
type Report struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"successful"`
	Failed    int           `json:"failed"`
	Items     []ItemResult  `json:"results"`
	Elapsed   time.Duration `json:"-"`
}

// Coordinator runs parse batches.
type Coordinator struct {
	pending PendingLister
	parser  Parser
}

// New creates a batch coordinator.
func New(pending PendingLister, parser Parser) *Coordinator {
	return &Coordinator{
		pending: pending,
		parser:  parser,
	}
}

// Run parses up to limit pending emails sequentially. limit is clamped to
// [1, MaxLimit] with DefaultLimit for zero. Per-item failures are recorded
// and never abort the remaining items.
func (c *Coordinator) Run(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	start := time.Now()

	ids, err := c.pending.ListPendingIDs(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &Report{Items: []ItemResult{}}
	if len(ids) == 0 {
		slog.Info("no pending emails to process")
		return report, nil
	}

	slog.Info("starting parse batch", "limit", limit, "pending", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := ItemResult{EmailID: id}
		if _, err := c.parser.ParseOne(ctx, id); err != nil {
			item.Error = err.Error()
			report.Failed++
			slog.Warn("batch item failed", "email_id", id, "error", err)
		} else {
			item.Success = true
			report.Succeeded++
		}
		report.Items = append(report.Items, item)
		report.Processed++
	}

	report.Elapsed = time.Since(start)

	slog.Info("parse batch complete",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"elapsed", report.Elapsed,
	)

	return report, nil
}
