/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

//go:build fyne && cgo

// These tests exercise the fyne widgets and need the fyne tag:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"image"
	"image/color"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/editor"
	"github.com/Gust4dev/VECT/internal/imagefile"
)

func loadedSession(t *testing.T) *editor.Session {
	t.Helper()
	img, err := imagefile.Decode("render.png", pngBytes(t, 100, 80, color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
	if err != nil {
		t.Fatal(err)
	}
	s := editor.New(editor.Options{})
	s.LoadImage(img)
	return s
}

func TestMaskCanvasStrokeUpdatesSession(t *testing.T) {
	test.NewTempApp(t)
	s := loadedSession(t)
	mc := NewMaskCanvas(s)
	mc.Resize(fyne.NewSize(100, 80))
	r := test.WidgetRenderer(mc)
	r.Layout(fyne.NewSize(100, 80))

	changes := 0
	mc.OnChange = func() { changes++ }
	mc.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(20, 20)}, Button: desktop.MouseButtonPrimary})
	mc.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 40)}})
	mc.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 40)}, Button: desktop.MouseButtonPrimary})

	st := s.State()
	if !st.HasMask || !st.CanUndo {
		t.Fatalf("stroke not committed: %+v", st)
	}
	if changes == 0 {
		t.Fatal("OnChange not called")
	}
}

func TestMaskCanvasMiddleButtonPans(t *testing.T) {
	test.NewTempApp(t)
	s := loadedSession(t)
	mc := NewMaskCanvas(s)
	mc.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(10, 10)}, Button: desktop.MouseButtonTertiary})
	if !s.State().Panning {
		t.Fatal("middle button did not start a pan")
	}
	mc.MouseMoved(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(30, 25)}})
	mc.MouseUp(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(30, 25)}, Button: desktop.MouseButtonTertiary})
	st := s.State()
	if st.Panning || st.Offset.X != 20 || st.Offset.Y != 15 || st.HasMask {
		t.Fatalf("pan state = %+v", st)
	}
}

func TestMaskCanvasScrollZooms(t *testing.T) {
	test.NewTempApp(t)
	s := loadedSession(t)
	mc := NewMaskCanvas(s)
	before := s.State().Scale
	mc.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 100)})
	if s.State().Scale <= before {
		t.Fatalf("scroll up did not zoom in: %v -> %v", before, s.State().Scale)
	}
}

func TestMaskCanvasRendersActiveImage(t *testing.T) {
	test.NewTempApp(t)
	s := loadedSession(t)
	s.SetTool(domain.ToolBrush)
	mc := NewMaskCanvas(s)
	r := test.WidgetRenderer(mc).(*maskCanvasRenderer)
	mc.Resize(fyne.NewSize(100, 80))
	r.Layout(fyne.NewSize(100, 80))
	img := r.draw(100, 80).(*image.RGBA)
	if got := img.RGBAAt(50, 40); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("centre pixel = %v", got)
	}
}

func TestGenerationMessage(t *testing.T) {
	if msg := generationMessage(editor.ErrGenerationUnavailable); msg == "" {
		t.Fatal("empty message")
	}
	if got := truncateLabel("abcdefgh", 4); got != "abc…" {
		t.Fatalf("truncateLabel = %q", got)
	}
}
