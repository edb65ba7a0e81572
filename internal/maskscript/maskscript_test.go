/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package maskscript

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gust4dev/VECT/internal/editor"
	"github.com/Gust4dev/VECT/internal/geom"
	"github.com/Gust4dev/VECT/internal/imagefile"
)

func session(t *testing.T) *editor.Session {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 200, 100))); err != nil {
		t.Fatal(err)
	}
	im, err := imagefile.Decode("base.png", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	s := editor.New(editor.Options{})
	s.LoadImage(im)
	return s
}

const sample = `
brush_size: 12
ops:
  - tool: brush
    points: [[10, 10], [60, 10]]
  - tool: rect
    points: [[100, 20], [150, 60]]
  - undo: true
  - zoom: in
  - pan: [5, -5]
`

func TestParseAndApply(t *testing.T) {
	sc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sc.BrushSize != 12 || len(sc.Ops) != 5 {
		t.Fatalf("unexpected script %+v", sc)
	}
	s := session(t)
	if err := Apply(s, sc); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	st := s.State()
	if st.BrushSize != 12 || !st.HasMask || !st.CanRedo {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Offset != (geom.Pt{X: 5, Y: -5}) || st.Scale <= 1 {
		t.Fatalf("view ops not applied: %+v", st)
	}
	m := s.MaskImage()
	if m.NRGBAAt(30, 10).A == 0 {
		t.Fatalf("brush stroke missing")
	}
	if m.NRGBAAt(120, 40).A != 0 {
		t.Fatalf("undone rectangle still present")
	}
}

func TestParseRejectsBadOps(t *testing.T) {
	bad := []string{
		"ops:\n  - tool: lasso\n    points: [[1, 1]]\n",
		"ops:\n  - tool: brush\n",
		"ops:\n  - undo: true\n    clear: true\n",
		"ops:\n  - zoom: sideways\n",
		"ops:\n  - pan: [1]\n",
		"ops:\n  - tool: brush\n    points: [[1, 2, 3]]\n",
		"colour: red\nops: []\n",
	}
	for _, in := range bad {
		if _, err := Parse([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "m.yaml")
	if err := os.WriteFile(p, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := Load(p)
	if err != nil || len(sc.Ops) != 5 {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil || !strings.Contains(err.Error(), "none.yaml") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
