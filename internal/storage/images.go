/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/imagefile"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// language=SQL
// dialect=SQLite
const upsertVersionImageSQL = `INSERT INTO version_images(version_id, mime, data, bytes, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(version_id) DO UPDATE SET mime = excluded.mime, data = excluded.data, bytes = excluded.bytes, updated_at = excluded.updated_at`

// language=SQL
// dialect=SQLite
const selectVersionImageSQL = `SELECT mime, data FROM version_images WHERE version_id = ?`

// PutVersionImage stores (or replaces) the encoded image of a version.
func PutVersionImage(ctx context.Context, ph *ProjectHandle, versionID, mime string, data []byte) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if versionID == "" || len(data) == 0 {
		return errors.New("version id and image data are required")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, upsertVersionImageSQL, versionID, mime, data, len(data), time.Now().UTC().Format(tsLayout))
	return err
}

// GetVersionImage returns the MIME type and bytes of a version image, or ErrNotFound.
func GetVersionImage(ctx context.Context, ph *ProjectHandle, versionID string) (string, []byte, error) {
	if ph == nil {
		return "", nil, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = db.Close() }()
	var mime string
	var data []byte
	err = db.QueryRowContext(ctx, selectVersionImageSQL, versionID).Scan(&mime, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("version image %s: %w", versionID, ErrNotFound)
	}
	return mime, data, err
}

// AddVersion stores the image, appends v to the manifest, makes it active and saves.
// The image is written first so the manifest never lists a version without bytes.
func AddVersion(ctx context.Context, ph *ProjectHandle, v domain.EditVersion, data []byte) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if _, exists := ph.Project.Version(v.ID); exists {
		return fmt.Errorf("version %s already exists", v.ID)
	}
	if err := PutVersionImage(ctx, ph, v.ID, v.MIMEType, data); err != nil {
		return err
	}
	ph.Project.Versions = append(ph.Project.Versions, v)
	ph.Project.ActiveVersionID = v.ID
	return Save(ph)
}

// ImportOriginal makes img the original version of an empty project.
func ImportOriginal(ctx context.Context, ph *ProjectHandle, img imagefile.Image) (domain.EditVersion, error) {
	if ph == nil {
		return domain.EditVersion{}, errors.New("nil ProjectHandle")
	}
	if len(ph.Project.Versions) > 0 {
		return domain.EditVersion{}, errors.New("project already has an original image")
	}
	v := domain.EditVersion{
		ID:        domain.OriginalVersionID,
		Name:      "Original",
		Prompt:    "Upload Original",
		MIMEType:  img.MIMEType,
		Width:     img.Width,
		Height:    img.Height,
		CreatedAt: time.Now().UTC(),
	}
	return v, AddVersion(ctx, ph, v, img.Data)
}

// LoadImages reads the images of every version in the manifest.
func LoadImages(ctx context.Context, ph *ProjectHandle) (map[string]imagefile.Image, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	out := make(map[string]imagefile.Image, len(ph.Project.Versions))
	for _, v := range ph.Project.Versions {
		mime, data, err := GetVersionImage(ctx, ph, v.ID)
		if err != nil {
			return nil, err
		}
		out[v.ID] = imagefile.Image{Name: v.ID, Data: data, MIMEType: mime, Width: v.Width, Height: v.Height}
	}
	return out, nil
}
