/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package imagefile reads a user-selected raster image and reports its native size.
package imagefile

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty       = errors.New("image file is empty")
	ErrUnsupported = errors.New("unsupported image format")
)

// Image is an encoded image kept in memory alongside its decoded dimensions.
type Image struct {
	Name     string
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

var mimeByFormat = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// Decode inspects data without fully decoding it.
func Decode(name string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Image{}, fmt.Errorf("%s: %w", name, ErrUnsupported)
		}
		return Image{}, fmt.Errorf("%s: %w", name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Image{}, fmt.Errorf("%s: invalid dimensions %dx%d", name, cfg.Width, cfg.Height)
	}
	mt, ok := mimeByFormat[format]
	if !ok {
		mt = http.DetectContentType(data)
	}
	return Image{Name: name, Data: data, MIMEType: mt, Width: cfg.Width, Height: cfg.Height}, nil
}

func ReadFile(path string) (Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	return Decode(filepath.Base(path), b)
}

// Pixels fully decodes the image.
func (im Image) Pixels() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(im.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", im.Name, err)
	}
	return img, nil
}
