/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package genai is the seam to the generative image model.
package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNoImage is returned when the model answered with text only.
var ErrNoImage = errors.New("no image was generated; the model might have returned only text")

// EditRequest carries the source image, a free-text instruction and an optional PNG mask
// (white where the edit applies).
type EditRequest struct {
	Image     []byte
	ImageMIME string
	Prompt    string
	Mask      []byte
}

type EditResult struct {
	Data     []byte
	MIMEType string
}

// Editor produces a new image from an EditRequest. Implementations must be safe for concurrent use.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (EditResult, error)
}

// APIError is a non-2xx reply from the model API or the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation api: status %d", e.Status)
	}
	return fmt.Sprintf("generation api: status %d: %s", e.Status, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

func (r EditRequest) validate() error {
	if len(r.Image) == 0 {
		return errors.New("edit request: image is empty")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("edit request: prompt is empty")
	}
	return nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL accepts a base64 data URL or bare base64. Bare input has an empty MIME type.
func ParseDataURL(s string) (mime string, data []byte, err error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return "", nil, errors.New("data url: missing comma")
		}
		mt, isB64 := strings.CutSuffix(meta, ";base64")
		if !isB64 {
			return "", nil, errors.New("data url: only base64 payloads are supported")
		}
		mime, s = mt, payload
	}
	data, err = base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	return mime, data, nil
}
