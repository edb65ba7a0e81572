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
	"image"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/Gust4dev/VECT/internal/geom"
)

// bboxOf returns the integer pixel rectangle covering r, clipped to bounds.
func bboxOf(r geom.Rect, bounds image.Rectangle) image.Rectangle {
	b := image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.W)), int(math.Ceil(r.Y+r.H)),
	)
	return b.Intersect(bounds)
}

func clearAlpha(a *image.Alpha, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := a.PixOffset(r.Min.X, y)
		clear(a.Pix[i : i+r.Dx()])
	}
}

// capsule is a round-capped segment of radius r: two discs and the connecting quad,
// all wound clockwise so the rasterizer unions them.
func capsule(a, b geom.Pt, r float64) *gg.Path {
	p := gg.NewPath()
	p.Circle(a.X, a.Y, r)
	d := b.Sub(a)
	l := d.Len()
	if l < 1e-6 {
		return p
	}
	p.Circle(b.X, b.Y, r)
	n := geom.Pt{X: d.Y / l * r, Y: -d.X / l * r}
	q := [4]geom.Pt{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)}
	p.MoveTo(q[0].X, q[0].Y)
	for _, v := range q[1:] {
		p.LineTo(v.X, v.Y)
	}
	p.Close()
	return p
}

// outline returns the closed rectangle or inscribed ellipse of r.
func outline(r geom.Rect, ellipse bool) *gg.Path {
	p := gg.NewPath()
	if ellipse {
		c := r.Center()
		p.Ellipse(c.X, c.Y, r.W/2, r.H/2)
	} else {
		p.Rectangle(r.X, r.Y, r.W, r.H)
	}
	return p
}

// ring is the band between outer and inner: the inner contour is mirrored about its
// centre, which reverses its winding and cuts it out of the outer one.
func ring(outer, inner geom.Rect, ellipse bool) *gg.Path {
	p := outline(outer, ellipse)
	if inner.W <= 0 || inner.H <= 0 {
		return p
	}
	c := inner.Center()
	flip := gg.Translate(c.X, c.Y).Multiply(gg.Scale(-1, 1)).Multiply(gg.Translate(-c.X, -c.Y))
	for _, el := range outline(inner, ellipse).Transform(flip).Elements() {
		appendElement(p, el)
	}
	return p
}

func appendElement(p *gg.Path, el gg.PathElement) {
	switch el := el.(type) {
	case gg.MoveTo:
		p.MoveTo(el.Point.X, el.Point.Y)
	case gg.LineTo:
		p.LineTo(el.Point.X, el.Point.Y)
	case gg.QuadTo:
		p.QuadraticTo(el.Control.X, el.Control.Y, el.Point.X, el.Point.Y)
	case gg.CubicTo:
		p.CubicTo(el.Control1.X, el.Control1.Y, el.Control2.X, el.Control2.Y, el.Point.X, el.Point.Y)
	case gg.Close:
		p.Close()
	}
}

// fillPath rasterises path into dst over clip, unioned with what dst holds.
func fillPath(dst *image.Alpha, clip image.Rectangle, path *gg.Path) {
	z := vector.NewRasterizer(clip.Dx(), clip.Dy())
	z.DrawOp = draw.Over
	ox, oy := float64(clip.Min.X), float64(clip.Min.Y)
	at := func(p gg.Point) (float32, float32) { return float32(p.X - ox), float32(p.Y - oy) }
	for _, el := range path.Elements() {
		switch el := el.(type) {
		case gg.MoveTo:
			z.MoveTo(at(el.Point))
		case gg.LineTo:
			z.LineTo(at(el.Point))
		case gg.QuadTo:
			bx, by := at(el.Control)
			cx, cy := at(el.Point)
			z.QuadTo(bx, by, cx, cy)
		case gg.CubicTo:
			bx, by := at(el.Control1)
			cx, cy := at(el.Control2)
			dx, dy := at(el.Point)
			z.CubeTo(bx, by, cx, cy, dx, dy)
		case gg.Close:
			z.ClosePath()
		}
	}
	z.Draw(dst, clip, image.Opaque, image.Point{})
}
