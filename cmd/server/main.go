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

// Offerdesk Parser — Extraction Service
//
// Entry point for the email extraction service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL and Redis
//  3. Wires the OpenAI extraction client and lifecycle controller
//  4. Runs a periodic sweep that recovers emails stuck in parsing
//  5. Serves the HTTP API for schemas, parsing, corrections, and accounts
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/offerdesk/parser/internal/api"
	"github.com/offerdesk/parser/internal/batch"
	"github.com/offerdesk/parser/internal/config"
	"github.com/offerdesk/parser/internal/events"
	"github.com/offerdesk/parser/internal/extract"
	"github.com/offerdesk/parser/internal/lifecycle"
	"github.com/offerdesk/parser/internal/lock"
	"github.com/offerdesk/parser/internal/openai"
	"github.com/offerdesk/parser/internal/schema"
	"github.com/offerdesk/parser/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting offerdesk parsing service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"model", cfg.OpenAIModel,
		"sweep_interval", cfg.SweepInterval,
		"stale_after", cfg.StaleParsingAfter,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	publisher := events.NewPublisher(rdb, cfg.EventsQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Stores (Postgres) ---
	records, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise email store", "error", err)
		os.Exit(1)
	}

	schemas, err := schema.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise schema store", "error", err)
		os.Exit(1)
	}

	// --- Extraction pipeline ---
	client := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, openai.DefaultBaseURL)
	extractor := extract.New(client)

	controller := lifecycle.New(lifecycle.Config{
		Store:     records,
		Schemas:   schemas,
		Extractor: extractor,
		Locks:     lock.NewParseLock(rdb),
		Publisher: publisher,
	})

	batches := batch.New(records, controller)

	// --- Stale parsing sweep ---
	// A crashed process can leave records stuck in parsing. The sweep
	// marks them failed with an explanatory error so the attempt still
	// ends in a terminal status.
	go runSweep(ctx, records, cfg.StaleParsingAfter, cfg.SweepInterval)

	// --- HTTP API ---
	handler := api.NewHandler(records, schemas, controller, batches, pgPool, publisher)
	ready, err := api.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start API server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // Stop the API server and background goroutines

	// Give in-flight requests a moment to complete.
	time.Sleep(500 * time.Millisecond)

	rdb.Close()
	pgPool.Close()

	slog.Info("parsing service stopped")
}

// runSweep periodically moves emails stuck in parsing to failed.
func runSweep(ctx context.Context, records *store.Store, staleAfter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := records.ResetStaleParsing(ctx, staleAfter)
			if err != nil {
				slog.Error("stale parsing sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("recovered emails stuck in parsing", "count", n)
			}
		}
	}
}
