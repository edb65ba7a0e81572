/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	applog "github.com/Gust4dev/VECT/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Generation is one row of the audit log.
type Generation struct {
	ID          int64         `json:"id"`
	CreatedAt   time.Time     `json:"created_at"`
	Prompt      string        `json:"prompt"`
	ImageMIME   string        `json:"image_mime"`
	ImageBytes  int           `json:"image_bytes"`
	HasMask     bool          `json:"has_mask"`
	ResultBytes int           `json:"result_bytes"`
	Status      int           `json:"status"`
	Duration    time.Duration `json:"duration_ns"`
	Error       string        `json:"error,omitempty"`
}

// Audit records generations in Postgres.
type Audit struct {
	db *sql.DB
}

// OpenAudit connects to dsn through the pgx driver, pings it and applies migrations.
func OpenAudit(ctx context.Context, dsn string) (*Audit, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(pctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Audit{db: db}, nil
}

func (a *Audit) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }

func (a *Audit) Close() error { return a.db.Close() }

// Record inserts g. CreatedAt and ID are assigned by the database.
func (a *Audit) Record(ctx context.Context, g Generation) error {
	_, err := a.db.ExecContext(ctx, `INSERT INTO generations
		(prompt, image_mime, image_bytes, has_mask, result_bytes, status, duration_ms, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.Prompt, g.ImageMIME, g.ImageBytes, g.HasMask, g.ResultBytes, g.Status, g.Duration.Milliseconds(), g.Error)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// Recent returns up to limit generations, newest first.
func (a *Audit) Recent(ctx context.Context, limit int) ([]Generation, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, created_at, prompt, image_mime, image_bytes, has_mask,
		result_bytes, status, duration_ms, error
		FROM generations ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select generations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Generation{}
	for rows.Next() {
		var g Generation
		var ms int64
		if err := rows.Scan(&g.ID, &g.CreatedAt, &g.Prompt, &g.ImageMIME, &g.ImageBytes, &g.HasMask,
			&g.ResultBytes, &g.Status, &ms, &g.Error); err != nil {
			return nil, err
		}
		g.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, g)
	}
	return out, rows.Err()
}

// applyMigrations applies embedded SQL migrations in filename order.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithComponent("server")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

// parseVersion reads the numeric prefix of NNNN_name.sql.
func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, found := strings.Cut(base, "_")
	if !found || prefix == "" {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid migration version in %s: %w", name, err)
	}
	return v, nil
}

func parseLimit(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", s)
	}
	if n > 500 {
		n = 500
	}
	return n, nil
}
