/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// lastJSONLine returns the last non-empty line of the file decoded as JSON.
func lastJSONLine(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var last string
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

func TestInitAndStructuredLoggingToFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "vect.log")
	Init(Options{Level: "debug", Format: "json", File: fpath})
	t.Cleanup(func() { Init(Options{}) })

	l := WithOperation(WithComponent("mask"), "commit")
	l.Info("stroke committed", slog.Int("entries", 2))
	time.Sleep(20 * time.Millisecond)

	m := lastJSONLine(t, fpath)
	if m["app"] != "vect" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "mask" || m["op"] != "commit" {
		t.Fatalf("context attrs mismatch: %v", m)
	}
	if m["msg"] != "stroke committed" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
}

func TestProjectFromContext(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "vect.log")
	Init(Options{Level: "info", Format: "json", File: fpath})
	t.Cleanup(func() { Init(Options{}) })

	ctx := WithProject(context.Background(), "Casa Lago")
	WithComponent("editor").InfoContext(ctx, "version added")
	time.Sleep(20 * time.Millisecond)

	m := lastJSONLine(t, fpath)
	if m["project"] != "Casa Lago" {
		t.Fatalf("project attr missing: %v", m)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
