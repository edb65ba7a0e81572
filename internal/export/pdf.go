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
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/jung-kurt/gofpdf"

	"github.com/Gust4dev/VECT/internal/imagefile"
	"github.com/Gust4dev/VECT/internal/storage"
)

// SheetOptions controls the version sheet PDF. Units are points.
type SheetOptions struct {
	PageWidth  float64 // default A4 landscape 842
	PageHeight float64 // default 595
	Margin     float64 // default 36
	// Versions restricts the sheet to these IDs, in manifest order. Empty means all.
	Versions []string
}

// VersionSheetPDF writes one page per edit version: the image fitted to the page with a caption
// carrying name, prompt and timestamp.
func VersionSheetPDF(ph *storage.ProjectHandle, images map[string]imagefile.Image, outPath string, opt SheetOptions) (string, error) {
	if ph == nil {
		return "", fmt.Errorf("project handle is nil")
	}
	if len(ph.Project.Versions) == 0 {
		return "", fmt.Errorf("project has no versions")
	}
	pw, ph2, margin := opt.PageWidth, opt.PageHeight, opt.Margin
	if pw <= 0 || ph2 <= 0 {
		pw, ph2 = 842, 595
	}
	if margin <= 0 {
		margin = 36
	}
	want := map[string]bool{}
	for _, id := range opt.Versions {
		want[id] = true
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph2},
	})
	pdf.SetTitle(fmt.Sprintf("%s - Versions", ph.Project.Name), true)
	pdf.SetAuthor("VECT", false)
	pdf.SetAutoPageBreak(false, 0)

	const captionH = 54.0
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pages := 0
	for _, v := range ph.Project.Versions {
		if len(want) > 0 && !want[v.ID] {
			continue
		}
		img, ok := images[v.ID]
		if !ok {
			return "", fmt.Errorf("missing image for version %s", v.ID)
		}
		name, opts, data, err := pdfImage(v.ID, img)
		if err != nil {
			return "", err
		}
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))

		boxW, boxH := pw-2*margin, ph2-2*margin-captionH
		iw, ih := float64(img.Width), float64(img.Height)
		s := math.Min(boxW/iw, boxH/ih)
		w, h := iw*s, ih*s
		x, y := margin+(boxW-w)/2, margin+(boxH-h)/2
		pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")

		cy := ph2 - margin - captionH + 16
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Text(margin, cy, tr(v.Name))
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(margin, cy+16, tr(truncate(v.Prompt, 140)))
		pdf.Text(margin, cy+30, fmt.Sprintf("%s  |  %dx%d  |  %s", v.CreatedAt.Format("2006-01-02 15:04"), img.Width, img.Height, v.ID))
		pages++
	}
	if pages == 0 {
		return "", fmt.Errorf("no versions selected")
	}
	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("build pdf: %w", err)
	}
	p, err := resolveOut(ph, outPath)
	if err != nil {
		return "", err
	}
	if err := pdf.OutputFileAndClose(p); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return p, nil
}

// pdfImage returns bytes gofpdf can embed. PNG, JPEG and GIF pass through; other formats are re-encoded as PNG.
func pdfImage(id string, img imagefile.Image) (string, gofpdf.ImageOptions, []byte, error) {
	switch img.MIMEType {
	case "image/png":
		return "v-" + id, gofpdf.ImageOptions{ImageType: "PNG"}, img.Data, nil
	case "image/jpeg":
		return "v-" + id, gofpdf.ImageOptions{ImageType: "JPG"}, img.Data, nil
	case "image/gif":
		return "v-" + id, gofpdf.ImageOptions{ImageType: "GIF"}, img.Data, nil
	}
	m, err := img.Pixels()
	if err != nil {
		return "", gofpdf.ImageOptions{}, nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, toNRGBA(m)); err != nil {
		return "", gofpdf.ImageOptions{}, nil, err
	}
	return "v-" + id, gofpdf.ImageOptions{ImageType: "PNG"}, buf.Bytes(), nil
}

func toNRGBA(m image.Image) image.Image {
	if n, ok := m.(*image.NRGBA); ok {
		return n
	}
	b := m.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, m.At(x, y))
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
