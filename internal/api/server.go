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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// Routes builds the HTTP mux for the handler.
func Routes(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.ServeHealth)

	mux.HandleFunc("GET /api/parsing/schema", h.ServeGetSchema)
	mux.HandleFunc("PUT /api/parsing/schema", h.ServeUpdateSchema)
	mux.HandleFunc("POST /api/parsing/parse/{id}", h.ServeParse)
	mux.HandleFunc("POST /api/parsing/parse-batch", h.ServeParseBatch)
	mux.HandleFunc("POST /api/parsing/correct/{id}", h.ServeCorrect)

	mux.HandleFunc("GET /api/emails", h.ServeListEmails)
	mux.HandleFunc("GET /api/emails/stats", h.ServeEmailStats)
	mux.HandleFunc("GET /api/emails/{id}", h.ServeGetEmail)
	mux.HandleFunc("DELETE /api/emails/{id}", h.ServeDeleteEmail)

	mux.HandleFunc("GET /api/accounts", h.ServeListAccounts)
	mux.HandleFunc("POST /api/accounts", h.ServeCreateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", h.ServeDeleteAccount)

	mux.HandleFunc("POST /api/seed", h.ServeSeed)
	mux.HandleFunc("DELETE /api/seed", h.ServeClearSeed)

	return mux
}

// Serve starts the API server on the given port. It binds the port
// immediately and signals readiness via the returned channel before starting
// to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	server := &http.Server{
		Handler: Routes(handler),
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind API port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("API server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("API server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	return ready, nil
}
