/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geminiServer(t *testing.T, h func(w http.ResponseWriter, r *http.Request, body generateRequest)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body generateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		h(w, r, body)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("k123", "")
	c.BaseURL = srv.URL
	return c
}

func TestClientEditReturnsFirstInlineImage(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G'}
	c := geminiServer(t, func(w http.ResponseWriter, r *http.Request, body generateRequest) {
		if r.URL.Path != "/models/"+DefaultModel+":generateContent" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k123" {
			t.Errorf("api key header missing")
		}
		parts := body.Contents[0].Parts
		if len(parts) != 4 || !strings.Contains(parts[0].Text, "User request: add trees") {
			t.Errorf("unexpected parts: %+v", parts)
		}
		if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/jpeg" {
			t.Errorf("source image part missing")
		}
		if got := body.GenerationConfig.ResponseModalities; len(got) != 2 || got[1] != "IMAGE" {
			t.Errorf("modalities=%v", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"here you go"},{"inlineData":{"mimeType":"image/png","data":"` +
			base64.StdEncoding.EncodeToString(img) + `"}}]}}]}`))
	})
	res, err := c.Edit(context.Background(), EditRequest{Image: []byte{1, 2}, ImageMIME: "image/jpeg", Prompt: "add trees", Mask: []byte{3}})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if res.MIMEType != "image/png" || string(res.Data) != string(img) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClientTextOnlyIsErrNoImage(t *testing.T) {
	c := geminiServer(t, func(w http.ResponseWriter, r *http.Request, _ generateRequest) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"I cannot do that"}]}}]}`))
	})
	_, err := c.Edit(context.Background(), EditRequest{Image: []byte{1}, Prompt: "x"})
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("want ErrNoImage, got %v", err)
	}
}

func TestClientAPIError(t *testing.T) {
	c := geminiServer(t, func(w http.ResponseWriter, r *http.Request, _ generateRequest) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	})
	_, err := c.Edit(context.Background(), EditRequest{Image: []byte{1}, Prompt: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 429 || apiErr.Message != "quota exceeded" || !apiErr.Retryable() {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEditRequestValidation(t *testing.T) {
	c := NewClient("", "")
	if _, err := c.Edit(context.Background(), EditRequest{Prompt: "x"}); err == nil {
		t.Fatalf("expected error for empty image")
	}
	if _, err := c.Edit(context.Background(), EditRequest{Image: []byte{1}, Prompt: "  "}); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestBackendClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/edit" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var p EditPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		switch p.Prompt {
		case "text":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"no image"}`))
		case "down":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream"}`))
		default:
			_ = json.NewEncoder(w).Encode(EditResponse{Image: DataURL("image/webp", []byte("out")), MIMEType: "image/webp"})
		}
	}))
	defer srv.Close()

	c := NewBackendClient(srv.URL+"/", "")
	res, err := c.Edit(context.Background(), EditRequest{Image: []byte("in"), Prompt: "ok"})
	if err != nil || string(res.Data) != "out" || res.MIMEType != "image/webp" {
		t.Fatalf("unexpected %+v %v", res, err)
	}
	if _, err := c.Edit(context.Background(), EditRequest{Image: []byte("in"), Prompt: "text"}); !errors.Is(err, ErrNoImage) {
		t.Fatalf("want ErrNoImage, got %v", err)
	}
	var apiErr *APIError
	if _, err := c.Edit(context.Background(), EditRequest{Image: []byte("in"), Prompt: "down"}); !errors.As(err, &apiErr) || apiErr.Status != 502 {
		t.Fatalf("want 502 APIError, got %v", err)
	}
}

func TestParseDataURL(t *testing.T) {
	mime, data, err := ParseDataURL(DataURL("image/png", []byte("abc")))
	if err != nil || mime != "image/png" || string(data) != "abc" {
		t.Fatalf("round trip: %q %q %v", mime, data, err)
	}
	mime, data, err = ParseDataURL(base64.StdEncoding.EncodeToString([]byte("raw")))
	if err != nil || mime != "" || string(data) != "raw" {
		t.Fatalf("bare base64: %q %q %v", mime, data, err)
	}
	if _, _, err := ParseDataURL("data:image/png,plain"); err == nil {
		t.Fatalf("expected error for non-base64 data url")
	}
}
