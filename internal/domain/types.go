/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
	"time"
)

// This file defines the data model shared by the editor, storage and the backend.

// Tool is the active editor tool. Changes take effect on the next pointer-down.
type Tool int

const (
	ToolBrush Tool = iota
	ToolEraser
	ToolMove
	ToolRectSelect
	ToolCircleSelect
	ToolPan
)

var toolNames = [...]string{"brush", "eraser", "move", "rectangle-select", "circle-select", "pan"}

func (t Tool) String() string {
	if t < 0 || int(t) >= len(toolNames) {
		return fmt.Sprintf("tool(%d)", int(t))
	}
	return toolNames[t]
}

// Paints reports whether the tool draws freehand strokes.
func (t Tool) Paints() bool { return t == ToolBrush || t == ToolEraser }

// Shapes reports whether the tool drags out a rectangle or ellipse.
func (t Tool) Shapes() bool { return t == ToolRectSelect || t == ToolCircleSelect }

// ParseTool accepts the canonical names plus the short forms "rect" and "circle".
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brush":
		return ToolBrush, nil
	case "eraser":
		return ToolEraser, nil
	case "move":
		return ToolMove, nil
	case "rectangle-select", "rect", "rectangle":
		return ToolRectSelect, nil
	case "circle-select", "circle", "ellipse":
		return ToolCircleSelect, nil
	case "pan":
		return ToolPan, nil
	}
	return ToolBrush, fmt.Errorf("unknown tool %q", s)
}

func (t Tool) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tool) UnmarshalText(b []byte) error {
	v, err := ParseTool(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Brush size bounds in image pixels.
const (
	MinBrushSize     = 5
	MaxBrushSize     = 200
	DefaultBrushSize = 40
)

// OriginalVersionID identifies the uploaded image in a project's version list.
const OriginalVersionID = "original"

// EditVersion is a named, timestamped image variant. The image bytes live in storage;
// the manifest only carries metadata.
type EditVersion struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt"`
	MIMEType  string    `json:"mimeType"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"timestamp"`
}

// Project is serialized as the human-readable manifest of a project directory.
type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	LastModified    time.Time     `json:"lastModified"`
	ActiveVersionID string        `json:"activeVersionId,omitempty"`
	Versions        []EditVersion `json:"versions"`
}

// Version returns the version with the given ID.
func (p *Project) Version(id string) (EditVersion, bool) {
	for _, v := range p.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return EditVersion{}, false
}
