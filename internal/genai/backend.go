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
	"net/url"
	"strings"
	"time"
)

// BackendClient implements Editor against the VECT backend, which holds the model credentials.
type BackendClient struct {
	BaseURL string
	Token   string // bearer token, optional
	client  *http.Client
}

// NewBackendClient creates a client. baseURL may include a trailing slash; it will be normalized.
func NewBackendClient(baseURL, token string) *BackendClient {
	return &BackendClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 3 * time.Minute},
	}
}

func (c *BackendClient) SetTimeout(d time.Duration) {
	if d > 0 {
		c.client.Timeout = d
	}
}

// EditPayload is the JSON body of POST /api/ai/edit.
type EditPayload struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type,omitempty"`
	Prompt   string `json:"prompt"`
	Mask     string `json:"mask,omitempty"`
}

// EditResponse is the success body of POST /api/ai/edit.
type EditResponse struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
}

func (c *BackendClient) Edit(ctx context.Context, req EditRequest) (EditResult, error) {
	if err := req.validate(); err != nil {
		return EditResult{}, err
	}
	p := EditPayload{
		Image:    base64.StdEncoding.EncodeToString(req.Image),
		MIMEType: req.ImageMIME,
		Prompt:   req.Prompt,
	}
	if len(req.Mask) > 0 {
		p.Mask = base64.StdEncoding.EncodeToString(req.Mask)
	}
	var out EditResponse
	if err := c.postJSON(ctx, "/api/ai/edit", p, &out); err != nil {
		return EditResult{}, err
	}
	mime, data, err := ParseDataURL(out.Image)
	if err != nil {
		return EditResult{}, fmt.Errorf("backend image: %w", err)
	}
	if out.MIMEType != "" {
		mime = out.MIMEType
	}
	return EditResult{Data: data, MIMEType: mime}, nil
}

func (c *BackendClient) postJSON(ctx context.Context, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &eb)
		if resp.StatusCode == http.StatusUnprocessableEntity {
			return ErrNoImage
		}
		return &APIError{Status: resp.StatusCode, Message: eb.Error}
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
