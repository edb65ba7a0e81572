/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package maskscript replays a YAML list of editor gestures against a session.
//
// Example:
//
//	brush_size: 30
//	ops:
//	  - tool: brush
//	    points: [[10, 10], [120, 40]]
//	  - tool: rect
//	    points: [[200, 50], [320, 180]]
//	  - undo: true
//	  - zoom: in
//	  - pan: [40, -10]
package maskscript

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/editor"
	"github.com/Gust4dev/VECT/internal/geom"
)

type Script struct {
	BrushSize float64 `yaml:"brush_size,omitempty"`
	Ops       []Op    `yaml:"ops"`
}

// Op is one step. Exactly one action must be set. Points are screen coordinates and pass
// through the current zoom and pan.
type Op struct {
	Tool   string      `yaml:"tool,omitempty"`
	Size   float64     `yaml:"size,omitempty"`
	Points [][]float64 `yaml:"points,omitempty"`
	Undo   bool        `yaml:"undo,omitempty"`
	Redo   bool        `yaml:"redo,omitempty"`
	Clear  bool        `yaml:"clear,omitempty"`
	Zoom   string      `yaml:"zoom,omitempty"` // in, out or reset
	Wheel  float64     `yaml:"wheel,omitempty"`
	Pan    []float64   `yaml:"pan,omitempty"`
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(data []byte) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Script{}, fmt.Errorf("parse mask script: %w", err)
	}
	for i, op := range s.Ops {
		if err := op.validate(); err != nil {
			return Script{}, fmt.Errorf("op %d: %w", i+1, err)
		}
	}
	return s, nil
}

func Load(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return Parse(b)
}

func (op Op) validate() error {
	n := 0
	for _, set := range []bool{op.Tool != "", op.Undo, op.Redo, op.Clear, op.Zoom != "", op.Wheel != 0, op.Pan != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return errors.New("exactly one action per op is required")
	}
	if op.Tool != "" {
		if _, err := domain.ParseTool(op.Tool); err != nil {
			return err
		}
		if len(op.Points) == 0 {
			return errors.New("tool op needs at least one point")
		}
		for _, p := range op.Points {
			if len(p) != 2 {
				return fmt.Errorf("point %v must have two coordinates", p)
			}
		}
	}
	if op.Pan != nil && len(op.Pan) != 2 {
		return errors.New("pan needs [dx, dy]")
	}
	switch op.Zoom {
	case "", "in", "out", "reset":
	default:
		return fmt.Errorf("unknown zoom %q", op.Zoom)
	}
	return nil
}

// Apply replays every op in order. The session must already hold an image.
func Apply(s *editor.Session, sc Script) error {
	if sc.BrushSize > 0 {
		s.SetBrushSize(sc.BrushSize)
	}
	for i, op := range sc.Ops {
		if err := op.validate(); err != nil {
			return fmt.Errorf("op %d: %w", i+1, err)
		}
		switch {
		case op.Tool != "":
			t, _ := domain.ParseTool(op.Tool)
			s.SetTool(t)
			if op.Size > 0 {
				s.SetBrushSize(op.Size)
			}
			pts := make([]geom.Pt, len(op.Points))
			for j, p := range op.Points {
				pts[j] = geom.Pt{X: p[0], Y: p[1]}
			}
			s.PointerDown(pts[0], editor.ButtonPrimary)
			for _, p := range pts[1:] {
				s.PointerMove(p)
			}
			s.PointerUp(pts[len(pts)-1], editor.ButtonPrimary)
		case op.Undo:
			s.Undo()
		case op.Redo:
			s.Redo()
		case op.Clear:
			s.ClearMask()
		case op.Zoom == "in":
			s.ZoomIn()
		case op.Zoom == "out":
			s.ZoomOut()
		case op.Zoom == "reset":
			s.ResetView()
		case op.Wheel != 0:
			s.Wheel(op.Wheel)
		case op.Pan != nil:
			s.PointerDown(geom.Pt{}, editor.ButtonMiddle)
			s.PointerMove(geom.Pt{X: op.Pan[0], Y: op.Pan[1]})
			s.PointerUp(geom.Pt{X: op.Pan[0], Y: op.Pan[1]}, editor.ButtonMiddle)
		}
	}
	return nil
}
