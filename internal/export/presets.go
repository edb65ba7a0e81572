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
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/Gust4dev/VECT/internal/imagefile"
	"github.com/Gust4dev/VECT/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetReview  PresetName = "review"  // sheet + captioned overlay
	PresetHandoff PresetName = "handoff" // archive + mask
)

// BatchOptions controls BatchExport.
//
// Relative OutDir values land under <project>/exports/<preset>/.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // pdf, mask, overlay, captioned, zip; empty means preset defaults
	OutDir  string
}

// BatchExport runs the preset's exports for the active version and returns the written paths.
func BatchExport(ph *storage.ProjectHandle, images map[string]imagefile.Image, mask image.Image, opt BatchOptions) ([]string, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	if len(ph.Project.Versions) == 0 {
		return nil, fmt.Errorf("project has no versions")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	preset := string(opt.Preset)
	if preset == "" {
		preset = string(PresetReview)
	}
	outDir := opt.OutDir
	if outDir == "" || !filepath.IsAbs(outDir) {
		outDir = filepath.Join(ph.Root, storage.ExportsDirName, preset, outDir)
	}
	active := ph.Project.ActiveVersionID
	if _, ok := ph.Project.Version(active); !ok {
		active = ph.Project.Versions[len(ph.Project.Versions)-1].ID
	}

	var out []string
	for _, f := range formats {
		var (
			p   string
			err error
		)
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			p, err = VersionSheetPDF(ph, images, filepath.Join(outDir, "versions.pdf"), SheetOptions{})
		case "mask":
			if mask == nil {
				continue
			}
			p, err = ExportMaskPNG(ph, filepath.Join(outDir, "mask.png"), mask)
		case "overlay":
			var base image.Image
			if base, err = images[active].Pixels(); err == nil {
				p, err = ExportOverlayPNG(ph, filepath.Join(outDir, "overlay-"+active+".png"), base, mask)
			}
		case "captioned":
			var base image.Image
			if base, err = images[active].Pixels(); err == nil {
				v, _ := ph.Project.Version(active)
				p, err = writeFile(ph, filepath.Join(outDir, "overlay-"+active+"-captioned.png"), func(w io.Writer) error {
					return CaptionedOverlayPNG(w, base, mask, v)
				})
			}
		case "zip":
			p, err = ArchiveZip(ph, images, mask, filepath.Join(outDir, "project.zip"))
		default:
			return out, fmt.Errorf("unknown export format %q", f)
		}
		if err != nil {
			return out, fmt.Errorf("export %s: %w", f, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetHandoff:
		return []string{"zip", "mask"}
	default:
		return []string{"pdf", "overlay", "captioned"}
	}
}
