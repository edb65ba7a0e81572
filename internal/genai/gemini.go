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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	applog "github.com/Gust4dev/VECT/internal/log"
)

const (
	DefaultModel   = "gemini-2.5-flash-image"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

const systemPrompt = `You are an architectural visualization assistant.
Apply the requested edit to the provided render with photorealistic quality.
Keep the original perspective, lighting and material style.
When a mask image is supplied, change only the white region of the mask and leave everything else untouched.`

// Client calls the Gemini generateContent REST endpoint.
type Client struct {
	BaseURL string
	Model   string
	APIKey  string
	client  *http.Client
}

// NewClient creates a client for model (DefaultModel when empty).
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		BaseURL: DefaultBaseURL,
		Model:   model,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// SetTimeout bounds a whole request including the image download. Non-positive values are ignored.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.client.Timeout = d
	}
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func buildGenerateRequest(req EditRequest) generateRequest {
	mime := req.ImageMIME
	if mime == "" {
		mime = http.DetectContentType(req.Image)
	}
	parts := []part{
		{Text: systemPrompt + "\n\nUser request: " + req.Prompt},
		{InlineData: &inlineData{MIMEType: mime, Data: base64.StdEncoding.EncodeToString(req.Image)}},
	}
	if len(req.Mask) > 0 {
		parts = append(parts,
			part{Text: "Mask for the edit region:"},
			part{InlineData: &inlineData{MIMEType: "image/png", Data: base64.StdEncoding.EncodeToString(req.Mask)}},
		)
	}
	var g generateRequest
	g.Contents = []content{{Role: "user", Parts: parts}}
	g.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}
	return g
}

// Edit sends one generateContent call. There is no retry.
func (c *Client) Edit(ctx context.Context, req EditRequest) (EditResult, error) {
	if err := req.validate(); err != nil {
		return EditResult{}, err
	}
	body, err := json.Marshal(buildGenerateRequest(req))
	if err != nil {
		return EditResult{}, err
	}
	u := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.BaseURL, "/"), c.Model)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return EditResult{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		hreq.Header.Set("x-goog-api-key", c.APIKey)
	}
	lg := applog.WithOperation(applog.WithComponent("genai"), "generateContent")
	start := time.Now()
	resp, err := c.client.Do(hreq)
	if err != nil {
		return EditResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb apiErrorBody
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		lg.Warn("model request failed", "status", resp.StatusCode, "dur_ms", time.Since(start).Milliseconds())
		return EditResult{}, &APIError{Status: resp.StatusCode, Message: msg}
	}
	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return EditResult{}, fmt.Errorf("decode model response: %w", err)
	}
	res, err := firstImage(gr)
	if err != nil {
		lg.Info("model returned no image", "dur_ms", time.Since(start).Milliseconds())
		return EditResult{}, err
	}
	lg.Info("model returned image", "mime", res.MIMEType, "bytes", len(res.Data), "dur_ms", time.Since(start).Milliseconds())
	return res, nil
}

// firstImage returns the first inline-data part of the first candidate.
func firstImage(gr generateResponse) (EditResult, error) {
	if len(gr.Candidates) == 0 {
		return EditResult{}, ErrNoImage
	}
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return EditResult{}, fmt.Errorf("decode image part: %w", err)
		}
		return EditResult{Data: data, MIMEType: p.InlineData.MIMEType}, nil
	}
	return EditResult{}, ErrNoImage
}
