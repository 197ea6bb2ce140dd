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

// Package events publishes extraction outcomes to a Redis list so downstream
// consumers (notifications, analytics) can react without polling the store.
// Publishing is best effort: the lifecycle controller logs failures but never
// fails a parse because the queue is unavailable.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ExtractionEvent describes the outcome of one parse attempt.
type ExtractionEvent struct {
	EventID   string    `json:"event_id"`
	EmailID   int64     `json:"email_id"`
	Status    string    `json:"status"` // "parsed" or "failed"
	Model     string    `json:"model,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends extraction events to a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// PublishOutcome serialises an extraction event and pushes it to the queue.
// The event ID is assigned here.
func (p *Publisher) PublishOutcome(ctx context.Context, event ExtractionEvent) error {
	event.EventID = uuid.New().String()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal extraction event: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, payload).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Debug("published extraction event",
		"event_id", event.EventID,
		"email_id", event.EmailID,
		"status", event.Status,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
