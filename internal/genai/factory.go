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
	"errors"
	"fmt"
	"strings"

	"github.com/Gust4dev/VECT/internal/config"
)

// ErrNoAPIKey is returned by NewEditor in gemini mode without a key.
var ErrNoAPIKey = errors.New("gemini mode needs an API key (VECT_GEMINI_API_KEY, GEMINI_API_KEY or `vect key set`)")

// NewEditor builds the generator selected by cfg.Mode. Mode "off" yields a nil Editor and no error.
func NewEditor(cfg config.GenerationConfig, apiKey string) (Editor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "gemini":
		if strings.TrimSpace(apiKey) == "" {
			return nil, ErrNoAPIKey
		}
		c := NewClient(apiKey, cfg.Model)
		if cfg.BaseURL != "" {
			c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		c.SetTimeout(cfg.Timeout())
		return c, nil
	case "backend":
		if strings.TrimSpace(cfg.BackendURL) == "" {
			return nil, errors.New("backend mode needs generation.backend_url")
		}
		c := NewBackendClient(cfg.BackendURL, "")
		c.SetTimeout(cfg.Timeout())
		return c, nil
	case "off", "none", "disabled":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown generation mode %q", cfg.Mode)
}
