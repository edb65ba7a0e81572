/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package server is the VECT backend: a small HTTP API that forwards masked edit requests to the
// configured generator and optionally records each generation in Postgres.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Gust4dev/VECT/internal/config"
	"github.com/Gust4dev/VECT/internal/genai"
	applog "github.com/Gust4dev/VECT/internal/log"
	"github.com/Gust4dev/VECT/internal/version"
)

// ServiceName is reported by the root health route.
const ServiceName = "VECT Backend API"

// Config holds server configuration.
type Config struct {
	Addr            string // http bind address, e.g. ":8080"
	CORSOrigins     []string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// ConfigFrom maps the server section of the application config.
func ConfigFrom(c config.ServerConfig) Config {
	cfg := Config{
		Addr:            c.Addr,
		CORSOrigins:     c.CORSOrigins,
		MaxBodyBytes:    int64(c.MaxBodyMB) << 20,
		ShutdownTimeout: time.Duration(c.ShutdownTimeoutMs) * time.Millisecond,
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 50 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Server wires the routes. gen and audit may be nil: edit requests then answer 503 and
// generations go unrecorded.
type Server struct {
	cfg   Config
	gen   genai.Editor
	audit *Audit
	log   *slog.Logger
	mux   *http.ServeMux
}

// New builds a server. It does not listen until Run.
func New(cfg Config, gen genai.Editor, audit *Audit) *Server {
	s := &Server{
		cfg:   cfg.withDefaults(),
		gen:   gen,
		audit: audit,
		log:   applog.WithComponent("server"),
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
	})
	// Health endpoints
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.audit != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.audit.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})

	s.mux.HandleFunc("POST /api/ai/edit", s.handleEdit)
	s.mux.HandleFunc("GET /api/generations", s.handleGenerations)
}

// Handler returns the routes wrapped in recovery, logging and CORS.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.logRequests(s.cors(s.mux)))
}

// Run listens on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("listening", slog.String("addr", ln.Addr().String()), slog.Bool("generator", s.gen != nil), slog.Bool("audit", s.audit != nil))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
