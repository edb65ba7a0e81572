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
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/Gust4dev/VECT/internal/imagefile"
	"github.com/Gust4dev/VECT/internal/storage"
)

var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tif",
}

// ArchiveZip packages every version image in manifest order as NN-<id>.<ext>, the mask as
// mask.png (when given) and the manifest as vect.json.
func ArchiveZip(ph *storage.ProjectHandle, images map[string]imagefile.Image, mask image.Image, outPath string) (string, error) {
	if ph == nil {
		return "", fmt.Errorf("project handle is nil")
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath += ".zip"
	}
	p, err := resolveOut(ph, outPath)
	if err != nil {
		return "", err
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = f.Close() }()
	zw := zip.NewWriter(f)

	pad := len(fmt.Sprint(len(ph.Project.Versions)))
	for i, v := range ph.Project.Versions {
		img, ok := images[v.ID]
		if !ok {
			return "", fmt.Errorf("missing image for version %s", v.ID)
		}
		ext := extByMIME[img.MIMEType]
		if ext == "" {
			ext = ".bin"
		}
		if err := addZipFile(zw, fmt.Sprintf("%0*d-%s%s", pad, i+1, v.ID, ext), img.Data); err != nil {
			return "", fmt.Errorf("zip add image: %w", err)
		}
	}
	if mask != nil {
		var buf bytes.Buffer
		if err := MaskPNG(&buf, mask); err != nil {
			return "", err
		}
		if err := addZipFile(zw, "mask.png", buf.Bytes()); err != nil {
			return "", fmt.Errorf("zip add mask: %w", err)
		}
	}
	manifest, err := json.MarshalIndent(ph.Project, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := addZipFile(zw, storage.ManifestFileName, manifest); err != nil {
		return "", fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close zip: %w", err)
	}
	return p, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
