/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export writes masks, overlays, version sheets and archives for a project.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/Gust4dev/VECT/internal/storage"
)

var errNilBase = errors.New("base image is nil")

// MaskPNG writes a black/white PNG: white wherever mask has non-zero alpha.
func MaskPNG(w io.Writer, mask image.Image) error {
	if mask == nil {
		return fmt.Errorf("mask is nil")
	}
	b := mask.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := mask.At(x, y).RGBA(); a != 0 {
				g.Pix[(y-b.Min.Y)*g.Stride+(x-b.Min.X)] = 0xff
			}
		}
	}
	return png.Encode(w, g)
}

// Overlay composites mask over base at the base's origin. Sizes may differ; the mask is clipped.
func Overlay(base, mask image.Image) *image.RGBA {
	b := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(out, out.Rect, base, b.Min, draw.Over)
	if mask != nil {
		draw.Draw(out, out.Rect, mask, mask.Bounds().Min, draw.Over)
	}
	return out
}

// OverlayPNG writes the preview composite of base and mask.
func OverlayPNG(w io.Writer, base, mask image.Image) error {
	if base == nil {
		return errNilBase
	}
	return png.Encode(w, Overlay(base, mask))
}

// resolveOut places relative paths under <project>/exports and ensures the directory exists.
func resolveOut(ph *storage.ProjectHandle, outPath string) (string, error) {
	if !filepath.IsAbs(outPath) {
		if ph == nil {
			return "", fmt.Errorf("relative output path %q needs a project", outPath)
		}
		outPath = filepath.Join(ph.Root, storage.ExportsDirName, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	return outPath, nil
}

func writeFile(ph *storage.ProjectHandle, outPath string, enc func(io.Writer) error) (string, error) {
	p, err := resolveOut(ph, outPath)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := enc(&buf); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filepath.Base(p), err)
	}
	return p, nil
}

// ExportMaskPNG writes MaskPNG to outPath and returns the final path.
func ExportMaskPNG(ph *storage.ProjectHandle, outPath string, mask image.Image) (string, error) {
	return writeFile(ph, outPath, func(w io.Writer) error { return MaskPNG(w, mask) })
}

// ExportOverlayPNG writes OverlayPNG to outPath and returns the final path.
func ExportOverlayPNG(ph *storage.ProjectHandle, outPath string, base, mask image.Image) (string, error) {
	return writeFile(ph, outPath, func(w io.Writer) error { return OverlayPNG(w, base, mask) })
}
