/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Gust4dev/VECT/internal/domain"
)

const captionPad = 8

var (
	captionBG = color.NRGBA{R: 0x1e, G: 0x1e, B: 0x1e, A: 0xff}
	captionFG = color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
)

// WrapText breaks text on spaces so each line fits maxWidth pixels in face.
// A single word wider than maxWidth keeps its own line. Newlines force a break.
func WrapText(face font.Face, text string, maxWidth int) []string {
	d := &font.Drawer{Face: face}
	space := d.MeasureString(" ").Round()
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var (
			cur   strings.Builder
			width int
		)
		for _, word := range strings.Fields(para) {
			w := d.MeasureString(word).Round()
			if cur.Len() > 0 && maxWidth > 0 && width+space+w > maxWidth {
				lines = append(lines, cur.String())
				cur.Reset()
				width = 0
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
				width += space
			}
			cur.WriteString(word)
			width += w
		}
		lines = append(lines, cur.String())
	}
	return lines
}

// captionText is the label printed under a captioned overlay.
func captionText(v domain.EditVersion) string {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		name = v.ID
	}
	if p := strings.TrimSpace(v.Prompt); p != "" {
		return name + ": " + p
	}
	return name
}

// Captioned appends a band below img holding text wrapped to the image width.
func Captioned(img image.Image, text string) *image.RGBA {
	face := basicfont.Face7x13
	b := img.Bounds()
	lines := WrapText(face, text, b.Dx()-2*captionPad)
	m := face.Metrics()
	lineH := m.Height.Ceil()
	band := len(lines)*lineH + 2*captionPad

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+band))
	draw.Draw(out, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, draw.Src)
	draw.Draw(out, image.Rect(0, b.Dy(), b.Dx(), b.Dy()+band), &image.Uniform{C: captionBG}, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: out, Src: &image.Uniform{C: captionFG}, Face: face}
	y := b.Dy() + captionPad + m.Ascent.Ceil()
	for _, ln := range lines {
		d.Dot = fixed.P(captionPad, y)
		d.DrawString(ln)
		y += lineH
	}
	return out
}

// CaptionedOverlayPNG writes Overlay(base, mask) with the version's name and prompt beneath it.
func CaptionedOverlayPNG(w io.Writer, base, mask image.Image, v domain.EditVersion) error {
	if base == nil {
		return errNilBase
	}
	return png.Encode(w, Captioned(Overlay(base, mask), captionText(v)))
}
