/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package mask holds the editable mask raster and the per-gesture state machine that paints it.
package mask

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/geom"
	applog "github.com/Gust4dev/VECT/internal/log"
)

// State is the gesture state of the engine.
type State int

const (
	Idle State = iota
	Drawing
	Shaping
)

func (s State) String() string {
	switch s {
	case Drawing:
		return "drawing"
	case Shaping:
		return "shaping"
	default:
		return "idle"
	}
}

// Style controls the paint colour and opacities. Color.A is ignored.
type Style struct {
	Color        color.NRGBA
	BrushAlpha   float64
	FillAlpha    float64
	OutlineAlpha float64
	OutlineWidth float64
}

func DefaultStyle() Style {
	return Style{
		Color:        color.NRGBA{R: 59, G: 130, B: 246, A: 255},
		BrushAlpha:   0.7,
		FillAlpha:    0.5,
		OutlineAlpha: 0.8,
		OutlineWidth: 2,
	}
}

// Committer receives a snapshot at the end of every gesture. *history.Stack implements it.
type Committer interface {
	Commit(buf *image.NRGBA)
}

// Engine owns the mask buffer. All paint operations are silent no-ops until Init has run.
// Engine is not safe for concurrent use; the editor session serialises access.
type Engine struct {
	style Style
	hist  Committer

	buf  *image.NRGBA
	base *image.NRGBA // buffer at gesture start
	cov  *image.Alpha // accumulated coverage of the current stroke

	state   State
	tool    domain.Tool
	width   float64
	last    geom.Pt
	anchor  geom.Pt
	hasMask bool
}

func NewEngine(hist Committer, style Style) *Engine {
	return &Engine{hist: hist, style: style}
}

func (e *Engine) State() State        { return e.state }
func (e *Engine) HasMask() bool       { return e.hasMask }
func (e *Engine) Style() Style        { return e.style }
func (e *Engine) Ready() bool         { return e.buf != nil }
func (e *Engine) Image() *image.NRGBA { return e.buf }

// Bounds is empty before Init.
func (e *Engine) Bounds() image.Rectangle {
	if e.buf == nil {
		return image.Rectangle{}
	}
	return e.buf.Rect
}

// Init sizes the buffer to the image, clears it and commits the blank snapshot.
func (e *Engine) Init(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	e.buf = image.NewNRGBA(image.Rect(0, 0, w, h))
	e.cov = image.NewAlpha(e.buf.Rect)
	e.base = image.NewNRGBA(e.buf.Rect)
	e.state = Idle
	e.hasMask = false
	e.commit()
	applog.WithComponent("mask").Debug("buffer initialised", "w", w, "h", h)
}

// Begin handles pointer-down at image-space point p.
func (e *Engine) Begin(tool domain.Tool, size float64, p geom.Pt) {
	if e.buf == nil {
		return
	}
	if e.state != Idle {
		e.End()
	}
	switch {
	case tool.Paints():
		e.snapshot()
		clear(e.cov.Pix)
		e.tool = tool
		e.width = max(size, 1)
		e.last = p
		e.state = Drawing
		e.stroke(p, p)
	case tool.Shapes():
		e.snapshot()
		e.tool = tool
		e.anchor = p
		e.state = Shaping
	}
}

// Move handles pointer-move at image-space point p.
func (e *Engine) Move(p geom.Pt) {
	if e.buf == nil {
		return
	}
	switch e.state {
	case Drawing:
		e.stroke(e.last, p)
		e.last = p
	case Shaping:
		e.shape(geom.Span(e.anchor, p))
	}
}

// End finishes the gesture (pointer-up or pointer-leave) and reports whether a snapshot was committed.
func (e *Engine) End() bool {
	if e.buf == nil || e.state == Idle {
		return false
	}
	e.state = Idle
	e.commit()
	e.hasMask = e.HasCoverage()
	return true
}

// Clear wipes the buffer and commits immediately.
func (e *Engine) Clear() {
	if e.buf == nil {
		return
	}
	e.state = Idle
	clear(e.buf.Pix)
	e.hasMask = false
	e.commit()
}

// Refresh recomputes the mask-present flag after the buffer changed outside a gesture (undo, redo).
func (e *Engine) Refresh() {
	e.hasMask = e.buf != nil && e.HasCoverage()
}

// Replace draws src over a cleared buffer and commits. Used when reopening a saved mask.
func (e *Engine) Replace(src image.Image) {
	if e.buf == nil || src == nil {
		return
	}
	e.state = Idle
	draw.Draw(e.buf, e.buf.Rect, src, src.Bounds().Min, draw.Src)
	e.commit()
	e.hasMask = e.HasCoverage()
}

// HasCoverage reports whether any pixel has non-zero alpha.
func (e *Engine) HasCoverage() bool {
	if e.buf == nil {
		return false
	}
	for i := 3; i < len(e.buf.Pix); i += 4 {
		if e.buf.Pix[i] != 0 {
			return true
		}
	}
	return false
}

// Coverage returns the alpha at pixel (x, y), 0 outside the buffer.
func (e *Engine) Coverage(x, y int) uint8 {
	if e.buf == nil || !(image.Point{x, y}.In(e.buf.Rect)) {
		return 0
	}
	return e.buf.Pix[e.buf.PixOffset(x, y)+3]
}

// Binary returns a black/white mask: 255 wherever the buffer has any coverage.
func (e *Engine) Binary() *image.Gray {
	if e.buf == nil {
		return nil
	}
	g := image.NewGray(e.buf.Rect)
	for y := 0; y < e.buf.Rect.Dy(); y++ {
		src := e.buf.Pix[y*e.buf.Stride:]
		dst := g.Pix[y*g.Stride:]
		for x := 0; x < e.buf.Rect.Dx(); x++ {
			if src[x*4+3] != 0 {
				dst[x] = 255
			}
		}
	}
	return g
}

func (e *Engine) snapshot() { copy(e.base.Pix, e.buf.Pix) }

func (e *Engine) commit() {
	if e.hist != nil {
		e.hist.Commit(e.buf)
	}
}

// stroke adds the capsule a-b to the stroke coverage and recomposites the touched pixels from base.
func (e *Engine) stroke(a, b geom.Pt) {
	r := e.width / 2
	clip := bboxOf(geom.Span(a, b).Inset(-r-1), e.buf.Rect)
	if clip.Empty() {
		return
	}
	fillPath(e.cov, clip, capsule(a, b, r))
	e.restore(clip)
	if e.tool == domain.ToolEraser {
		e.erase(clip)
	} else {
		e.paint(clip, e.style.BrushAlpha)
	}
}

// shape restores the snapshot and draws one filled, outlined rectangle or ellipse.
func (e *Engine) shape(r geom.Rect) {
	copy(e.buf.Pix, e.base.Pix)
	ow := e.style.OutlineWidth
	clip := bboxOf(r.Inset(-ow/2-1), e.buf.Rect)
	if clip.Empty() {
		return
	}
	ellipse := e.tool == domain.ToolCircleSelect

	clearAlpha(e.cov, clip)
	fillPath(e.cov, clip, outline(r, ellipse))
	e.paint(clip, e.style.FillAlpha)

	// The outline goes on top of the fill already in buf.
	clearAlpha(e.cov, clip)
	fillPath(e.cov, clip, ring(r.Inset(-ow/2), r.Inset(ow/2), ellipse))
	e.paint(clip, e.style.OutlineAlpha)
}
