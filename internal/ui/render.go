/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/Gust4dev/VECT/internal/geom"
)

// Backdrop is the colour behind the image.
var Backdrop = color.NRGBA{R: 30, G: 30, B: 34, A: 255}

// aff3 converts m to the x/image row-major form, scaled by the device pixel ratio.
func aff3(m geom.Affine2D, pixScale float64) f64.Aff3 {
	return f64.Aff3{
		m.A * pixScale, m.C * pixScale, m.E * pixScale,
		m.B * pixScale, m.D * pixScale, m.F * pixScale,
	}
}

// Compose renders base with mask on top into dst using xf (screen from image). pixScale converts
// screen units to dst pixels. Either image may be nil.
func Compose(dst *image.RGBA, base, mask image.Image, xf geom.Affine2D, pixScale float64) {
	draw.Draw(dst, dst.Rect, &image.Uniform{C: Backdrop}, image.Point{}, draw.Src)
	if pixScale <= 0 {
		pixScale = 1
	}
	s2d := aff3(xf, pixScale)
	interp := draw.Interpolator(draw.ApproxBiLinear)
	if xf.A*pixScale >= 1 {
		interp = draw.NearestNeighbor
	}
	if base != nil {
		interp.Transform(dst, s2d, base, base.Bounds(), draw.Over, nil)
	}
	if mask != nil {
		draw.NearestNeighbor.Transform(dst, s2d, mask, mask.Bounds(), draw.Over, nil)
	}
}
