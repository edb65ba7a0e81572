/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package mask

import (
	"bytes"
	"testing"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/geom"
	"github.com/Gust4dev/VECT/internal/history"
)

func newEngine(w, h int) (*Engine, *history.Stack) {
	st := history.New(history.Config{})
	e := NewEngine(st, DefaultStyle())
	e.Init(w, h)
	return e, st
}

func pt(x, y float64) geom.Pt { return geom.Pt{X: x, Y: y} }

func TestInitPaintClearScenario(t *testing.T) {
	e, st := newEngine(100, 100)
	if st.Len() != 1 || e.HasMask() || e.HasCoverage() {
		t.Fatalf("after init: len=%d hasMask=%v", st.Len(), e.HasMask())
	}

	e.Begin(domain.ToolBrush, 10, pt(50, 50))
	if e.State() != Drawing {
		t.Fatalf("state=%v want drawing", e.State())
	}
	if !e.End() {
		t.Fatalf("End should commit")
	}
	if st.Len() != 2 || !e.HasMask() {
		t.Fatalf("after dot: len=%d hasMask=%v", st.Len(), e.HasMask())
	}
	if e.Coverage(50, 50) == 0 {
		t.Fatalf("dot centre not painted")
	}
	if e.Coverage(0, 0) != 0 || e.Coverage(70, 50) != 0 {
		t.Fatalf("paint leaked outside the dot")
	}

	e.Clear()
	if st.Len() != 3 || e.HasMask() || e.HasCoverage() {
		t.Fatalf("after clear: len=%d hasMask=%v", st.Len(), e.HasMask())
	}
}

func TestBrushColourAndAlpha(t *testing.T) {
	e, _ := newEngine(40, 40)
	e.Begin(domain.ToolBrush, 10, pt(20, 20))
	e.End()
	px := e.Image().NRGBAAt(20, 20)
	if px.A != to8(0.7*255) || px.R != 59 || px.G != 130 || px.B != 246 {
		t.Fatalf("unexpected centre pixel %+v", px)
	}
}

func TestStrokeDoesNotDarkenWhereSegmentsOverlap(t *testing.T) {
	e, _ := newEngine(100, 20)
	e.Begin(domain.ToolBrush, 8, pt(10, 10))
	e.Move(pt(50, 10))
	e.Move(pt(20, 10))
	e.Move(pt(90, 10))
	e.End()
	want := to8(0.7 * 255)
	for x := 12; x <= 88; x++ {
		if a := e.Coverage(x, 10); a != want {
			t.Fatalf("x=%d alpha=%d want %d", x, a, want)
		}
	}
}

func TestEraserRetracingBrushLeavesNoCoverage(t *testing.T) {
	for _, width := range []float64{10, 3, 25} {
		e, st := newEngine(100, 100)
		path := []geom.Pt{pt(20, 50), pt(40, 30), pt(60, 70), pt(80, 50)}

		e.Begin(domain.ToolBrush, width, path[0])
		for _, p := range path[1:] {
			e.Move(p)
		}
		e.End()
		if !e.HasMask() {
			t.Fatalf("width %v: brush stroke left no mask", width)
		}

		e.Begin(domain.ToolEraser, width, path[0])
		for _, p := range path[1:] {
			e.Move(p)
		}
		e.End()
		if e.HasMask() || e.HasCoverage() {
			residual := 0
			for i := 3; i < len(e.Image().Pix); i += 4 {
				if e.Image().Pix[i] != 0 {
					residual++
				}
			}
			t.Fatalf("width %v: eraser along the same path left %d pixels", width, residual)
		}
		if st.Len() != 3 {
			t.Fatalf("history len=%d want 3", st.Len())
		}
	}
}

func TestEraserClearsAntialiasedEdge(t *testing.T) {
	e, _ := newEngine(40, 40)
	e.Begin(domain.ToolBrush, 9, pt(20.3, 20.3))
	e.End()
	e.Begin(domain.ToolEraser, 9, pt(20.3, 20.3))
	e.End()
	if e.HasCoverage() {
		t.Fatalf("dot erased at the same spot and size left edge pixels")
	}
}

func TestEraserOnlyTouchesFootprint(t *testing.T) {
	e, _ := newEngine(60, 20)
	e.Begin(domain.ToolBrush, 10, pt(5, 10))
	e.Move(pt(55, 10))
	e.End()
	e.Begin(domain.ToolEraser, 10, pt(30, 10))
	e.End()
	if e.Coverage(30, 10) != 0 {
		t.Fatalf("erased centre still covered")
	}
	if e.Coverage(10, 10) == 0 || e.Coverage(50, 10) == 0 {
		t.Fatalf("eraser removed paint outside its footprint")
	}
}

func TestRectangleIsDragOrderIndependent(t *testing.T) {
	a, _ := newEngine(100, 100)
	a.Begin(domain.ToolRectSelect, 40, pt(10, 10))
	a.Move(pt(60, 40))
	a.End()

	b, _ := newEngine(100, 100)
	b.Begin(domain.ToolRectSelect, 40, pt(60, 40))
	b.Move(pt(10, 10))
	b.End()

	if !bytes.Equal(a.Image().Pix, b.Image().Pix) {
		t.Fatalf("rectangles differ by drag direction")
	}
	for y := 10; y < 40; y++ {
		for x := 10; x < 60; x++ {
			if a.Coverage(x, y) == 0 {
				t.Fatalf("pixel (%d,%d) inside rectangle not covered", x, y)
			}
		}
	}
	for _, p := range [][2]int{{5, 5}, {65, 20}, {30, 45}, {8, 25}, {30, 8}} {
		if a.Coverage(p[0], p[1]) != 0 {
			t.Fatalf("pixel %v outside rectangle covered", p)
		}
	}
	// Interior carries the fill alpha only; the border adds the outline on top.
	if got := a.Coverage(30, 25); got != 128 {
		t.Fatalf("fill alpha=%d want 128", got)
	}
	if got := a.Coverage(9, 25); got != 204 {
		t.Fatalf("outline alpha=%d want 204", got)
	}
}

func TestShapeMoveRestoresSnapshot(t *testing.T) {
	e, st := newEngine(100, 100)
	e.Begin(domain.ToolBrush, 6, pt(90, 90))
	e.End()
	dot := e.Coverage(90, 90)

	e.Begin(domain.ToolRectSelect, 0, pt(10, 10))
	e.Move(pt(80, 80))
	e.Move(pt(20, 20))
	if e.Coverage(50, 50) != 0 {
		t.Fatalf("shrinking the drag left stale pixels")
	}
	if e.Coverage(90, 90) != dot {
		t.Fatalf("shape preview disturbed existing paint")
	}
	if st.Len() != 2 {
		t.Fatalf("moves must not commit; len=%d", st.Len())
	}
	e.End()
	if st.Len() != 3 {
		t.Fatalf("len=%d want 3", st.Len())
	}
}

func TestEllipseCoverage(t *testing.T) {
	e, _ := newEngine(100, 100)
	e.Begin(domain.ToolCircleSelect, 0, pt(20, 20))
	e.Move(pt(80, 60))
	e.End()
	if e.Coverage(50, 40) == 0 {
		t.Fatalf("ellipse centre not covered")
	}
	if e.Coverage(22, 22) != 0 || e.Coverage(78, 58) != 0 {
		t.Fatalf("ellipse bounding box corners should stay empty")
	}
}

func TestMoveAndPanToolsDoNotPaint(t *testing.T) {
	e, st := newEngine(20, 20)
	for _, tl := range []domain.Tool{domain.ToolMove, domain.ToolPan} {
		e.Begin(tl, 10, pt(10, 10))
		e.Move(pt(15, 15))
		if e.State() != Idle || e.End() {
			t.Fatalf("%v should not start a gesture", tl)
		}
	}
	if st.Len() != 1 || e.HasCoverage() {
		t.Fatalf("non-painting tools changed the mask")
	}
}

func TestNoSurfaceIsNoop(t *testing.T) {
	st := history.New(history.Config{})
	e := NewEngine(st, DefaultStyle())
	e.Begin(domain.ToolBrush, 10, pt(1, 1))
	e.Move(pt(2, 2))
	if e.End() {
		t.Fatalf("End without surface should not commit")
	}
	e.Clear()
	if st.Len() != 0 || e.HasMask() || e.Binary() != nil || !e.Bounds().Empty() {
		t.Fatalf("engine without surface must do nothing")
	}
}

func TestUndoAndRefresh(t *testing.T) {
	e, st := newEngine(30, 30)
	e.Begin(domain.ToolBrush, 10, pt(15, 15))
	e.End()
	if !st.Undo(e.Image()) {
		t.Fatalf("undo failed")
	}
	e.Refresh()
	if e.HasMask() {
		t.Fatalf("mask present after undoing the only stroke")
	}
	st.Redo(e.Image())
	e.Refresh()
	if !e.HasMask() {
		t.Fatalf("mask missing after redo")
	}
}

func TestBinary(t *testing.T) {
	e, _ := newEngine(30, 30)
	e.Begin(domain.ToolRectSelect, 0, pt(5, 5))
	e.Move(pt(15, 15))
	e.End()
	g := e.Binary()
	if g.GrayAt(10, 10).Y != 255 || g.GrayAt(25, 25).Y != 0 {
		t.Fatalf("binary mask wrong: %v %v", g.GrayAt(10, 10), g.GrayAt(25, 25))
	}
}
