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

// Package lock provides per-email parse locks using a Redis SETNX key with
// TTL. The lock guarantees the same email is never parsed concurrently by
// two workers; the TTL bounds how long a crashed holder can block re-parsing.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL caps lock lifetime. A single parse (one LLM round trip)
	// completes well inside this window.
	DefaultTTL = 5 * time.Minute

	// keyPrefix namespaces parse lock keys in Redis.
	keyPrefix = "parser:parsing:"
)

// ParseLock hands out mutual-exclusion locks keyed by email ID.
type ParseLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewParseLock creates a parse lock backed by Redis.
func NewParseLock(rdb *redis.Client) *ParseLock {
	return &ParseLock{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

func key(emailID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, emailID)
}

// Acquire attempts to take the lock for an email. Returns false when another
// parse attempt currently holds it.
func (l *ParseLock) Acquire(ctx context.Context, emailID int64) (bool, error) {
	// SET NX = set only if key does not exist. Returns true if the key was set.
	set, err := l.rdb.SetNX(ctx, key(emailID), 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("parse lock SETNX: %w", err)
	}
	return set, nil
}

// Release frees the lock for an email.
func (l *ParseLock) Release(ctx context.Context, emailID int64) error {
	if err := l.rdb.Del(ctx, key(emailID)).Err(); err != nil {
		return fmt.Errorf("parse lock DEL: %w", err)
	}
	return nil
}
