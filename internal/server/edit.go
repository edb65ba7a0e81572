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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"github.com/Gust4dev/VECT/internal/genai"
)

//go:embed schema/edit_request.json
var editRequestSchema []byte

var editSchema = mustSchema(editRequestSchema)

func mustSchema(b []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		panic(fmt.Sprintf("compile edit request schema: %v", err))
	}
	return s
}

var errGeneratorOff = errors.New("image generation is not configured on this server")

// validateEditBody checks body against the edit request schema.
func validateEditBody(body []byte) error {
	res, err := editSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// decodeEditPayload turns a validated payload into a generator request.
func decodeEditPayload(p genai.EditPayload) (genai.EditRequest, error) {
	mime, img, err := genai.ParseDataURL(p.Image)
	if err != nil {
		return genai.EditRequest{}, fmt.Errorf("image: %w", err)
	}
	if len(img) == 0 {
		return genai.EditRequest{}, errors.New("image: empty payload")
	}
	if p.MIMEType != "" {
		mime = p.MIMEType
	}
	if mime == "" {
		mime = http.DetectContentType(img)
		if !strings.HasPrefix(mime, "image/") {
			return genai.EditRequest{}, fmt.Errorf("image: unrecognised content type %q", mime)
		}
	}
	req := genai.EditRequest{Image: img, ImageMIME: mime, Prompt: strings.TrimSpace(p.Prompt)}
	if strings.TrimSpace(p.Mask) != "" {
		_, m, err := genai.ParseDataURL(p.Mask)
		if err != nil {
			return genai.EditRequest{}, fmt.Errorf("mask: %w", err)
		}
		req.Mask = m
	}
	return req, nil
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	l := s.log.With(slog.String("op", "edit"))
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooBig.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if err := validateEditBody(body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var p genai.EditPayload
	if err := json.Unmarshal(body, &p); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req, err := decodeEditPayload(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.gen == nil {
		writeError(w, http.StatusServiceUnavailable, errGeneratorOff)
		return
	}

	start := time.Now()
	res, err := s.gen.Edit(r.Context(), req)
	rec := Generation{
		Prompt:      req.Prompt,
		ImageMIME:   req.ImageMIME,
		ImageBytes:  len(req.Image),
		HasMask:     len(req.Mask) > 0,
		ResultBytes: len(res.Data),
		Duration:    time.Since(start),
	}
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, genai.ErrNoImage):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusBadGateway
	}
	rec.Status = status
	if err != nil {
		rec.Error = err.Error()
	}
	s.record(r, rec)

	if err != nil {
		l.Warn("generation failed", slog.Int("status", status), slog.Any("err", err))
		writeError(w, status, err)
		return
	}
	mime := res.MIMEType
	if mime == "" {
		mime = http.DetectContentType(res.Data)
	}
	l.Info("generation ok", slog.Int("bytes", len(res.Data)), slog.Duration("took", rec.Duration))
	writeJSON(w, http.StatusOK, genai.EditResponse{Image: genai.DataURL(mime, res.Data), MIMEType: mime})
}

func (s *Server) record(r *http.Request, g Generation) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(r.Context(), g); err != nil {
		s.log.Warn("audit record failed", slog.Any("err", err))
	}
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, errors.New("generation audit log is disabled"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := parseLimit(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		limit = n
	}
	gs, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"generations": gs})
}
