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

// Offerdesk Parser — Mailbox Sync Command
//
// Standalone CLI tool that pulls recent messages from connected Gmail
// accounts into the store as pending emails. Intended for cron-driven
// ingestion and for seeding data on new deployments.
//
// Usage:
//
//	go run ./cmd/sync/ [--account demo@example.com] [--since 168h]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/offerdesk/parser/internal/config"
	"github.com/offerdesk/parser/internal/gmail"
	"github.com/offerdesk/parser/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	accountFlag := flag.String("account", "", "Account email to sync (optional; empty = all active accounts)")
	sinceFlag := flag.String("since", "168h", "Lookback duration (e.g. 168h for 1 week, 720h for 30 days)")
	flag.Parse()

	sinceDuration, err := time.ParseDuration(*sinceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --since duration %q: %v\n", *sinceFlag, err)
		os.Exit(1)
	}

	slog.Info("starting mailbox sync", "since", sinceDuration)

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		slog.Error("google client credentials are required for mailbox sync")
		os.Exit(1)
	}

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

	records, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise email store", "error", err)
		os.Exit(1)
	}

	// --- Resolve accounts ---
	accounts, err := records.ListAccounts(ctx)
	if err != nil {
		slog.Error("failed to list accounts", "error", err)
		os.Exit(1)
	}

	var targets []int
	for i := range accounts {
		if *accountFlag != "" && accounts[i].Email != *accountFlag {
			continue
		}
		if !accounts[i].IsActive {
			continue
		}
		targets = append(targets, i)
	}
	if len(targets) == 0 {
		slog.Error("no matching active accounts to sync", "account", *accountFlag)
		os.Exit(1)
	}

	// --- Run Sync ---
	fetcher := gmail.NewFetcher(gmail.DefaultBaseURL)
	syncer := gmail.NewSyncer(records, fetcher, gmail.DefaultBaseURL,
		cfg.Google.ClientID, cfg.Google.ClientSecret, sinceDuration)

	totalFetched, totalSkipped, totalFailed := 0, 0, 0
	for _, i := range targets {
		result, err := syncer.SyncAccount(ctx, &accounts[i])
		if err != nil {
			slog.Error("account sync failed", "account", accounts[i].Email, "error", err)
			continue
		}
		totalFetched += result.Fetched
		totalSkipped += result.Skipped
		totalFailed += result.Failed
	}

	// --- Summary ---
	slog.Info("mailbox sync complete",
		"accounts", len(targets),
		"fetched", totalFetched,
		"skipped", totalSkipped,
		"failed", totalFailed,
	)
}
