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

	"golang.org/x/image/draw"
)

// restore copies the gesture snapshot back over clip.
func (e *Engine) restore(clip image.Rectangle) {
	draw.Draw(e.buf, clip, e.base, clip.Min, draw.Src)
}

// paint composites the style colour at the given opacity over the buffer, weighted by the
// current coverage.
func (e *Engine) paint(clip image.Rectangle, alpha float64) {
	c := e.style.Color
	c.A = to8(alpha * 255)
	draw.DrawMask(e.buf, clip, image.NewUniform(c), image.Point{}, e.cov, clip.Min, draw.Over)
}

// erase clears every pixel the stroke touches, anti-aliased edge pixels included, so an
// eraser retracing a brush stroke at the same width leaves nothing behind.
func (e *Engine) erase(clip image.Rectangle) {
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		ci := e.cov.PixOffset(clip.Min.X, y)
		pi := e.buf.PixOffset(clip.Min.X, y)
		for x := clip.Min.X; x < clip.Max.X; x, ci, pi = x+1, ci+1, pi+4 {
			if e.cov.Pix[ci] != 0 {
				clear(e.buf.Pix[pi : pi+4 : pi+4])
			}
		}
	}
}

func to8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}
