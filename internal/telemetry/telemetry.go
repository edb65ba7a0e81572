/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports. Nothing is sent
// unless VECT_TELEMETRY_OPT_IN is truthy and an endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "github.com/Gust4dev/VECT/internal/log"
	"github.com/Gust4dev/VECT/internal/version"
)

// Config is read from the environment by FromEnv:
//
//	VECT_TELEMETRY_OPT_IN      "1", "true", "yes" or "on"
//	VECT_TELEMETRY_URL         endpoint receiving JSON events
//	VECT_CRASH_UPLOAD_URL      endpoint receiving plain-text crash reports
//	VECT_TELEMETRY_TIMEOUT_MS  request timeout, default 1500
//	VECT_TELEMETRY_DEBUG       log send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("VECT_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("VECT_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("VECT_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("VECT_TELEMETRY_DEBUG") != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv("VECT_TELEMETRY_TIMEOUT_MS"))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Event is the JSON body posted to the events endpoint. Props must not carry prompts, paths or
// image data.
type Event struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client queues events on a bounded channel and drops them when it is full or a send fails.
type Client struct {
	cfg     Config
	log     *slog.Logger
	cli     *http.Client
	q       chan Event
	pending sync.WaitGroup
	once    sync.Once
	closed  chan struct{}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault installs a default client configured from the environment on first use.
func InitDefault() {
	defaultOnce.Do(func() {
		if defaultClient == nil {
			defaultClient = New(FromEnv())
		}
	})
}

// SetDefault replaces the default client.
func SetDefault(c *Client) {
	defaultOnce.Do(func() {})
	defaultClient = c
}

func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Event, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Track queues a named event. It never blocks.
func (c *Client) Track(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	c.pending.Add(1)
	select {
	case c.q <- ev:
	default:
		c.pending.Done()
	}
}

// TrackGeneration records the outcome of one generation request.
func (c *Client) TrackGeneration(ok bool, took time.Duration, hasMask bool) {
	c.Track("generation", map[string]any{"ok": ok, "duration_ms": took.Milliseconds(), "has_mask": hasMask})
}

// TrackExport records a finished export.
func (c *Client) TrackExport(format string) {
	c.Track("export", map[string]any{"format": format})
}

// Flush waits until queued events and crash uploads are sent or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Close stops the sender. Queued events are dropped.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.q:
			c.send(ev)
			c.pending.Done()
		}
	}
}

func (c *Client) send(ev Event) {
	buf, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.post(c.cfg.EventsURL, "application/json", buf)
}

func (c *Client) post(url, contentType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("url", url), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a crash report in the background when opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b)
	}()
}

// Default returns the package-level client.
func Default() *Client { InitDefault(); return defaultClient }

func Track(name string, props map[string]any) { Default().Track(name, props) }

func UploadCrash(report []byte) { Default().UploadCrash(report) }

func Flush(ctx context.Context) { Default().Flush(ctx) }
