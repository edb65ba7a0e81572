/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package imagefile

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func encode(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 7, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := enc(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeFormats(t *testing.T) {
	cases := []struct {
		name string
		enc  func(*bytes.Buffer, image.Image) error
		mime string
	}{
		{"a.png", func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) }, "image/png"},
		{"a.jpg", func(b *bytes.Buffer, m image.Image) error { return jpeg.Encode(b, m, nil) }, "image/jpeg"},
		{"a.bmp", func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) }, "image/bmp"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			im, err := Decode(c.name, encode(t, c.enc))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if im.Width != 7 || im.Height != 3 || im.MIMEType != c.mime || im.Name != c.name {
				t.Fatalf("unexpected image %+v", im)
			}
			px, err := im.Pixels()
			if err != nil || px.Bounds().Dx() != 7 {
				t.Fatalf("pixels: %v", err)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode("x", nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("want ErrEmpty, got %v", err)
	}
	if _, err := Decode("notes.txt", []byte("just some text")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "render.png")
	if err := os.WriteFile(p, encode(t, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) }), 0o644); err != nil {
		t.Fatal(err)
	}
	im, err := ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if im.Name != "render.png" || im.Width != 7 {
		t.Fatalf("unexpected %+v", im)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
