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
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"testing"
	"time"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/imagefile"
)

func newProject(t *testing.T) *ProjectHandle {
	t.Helper()
	ph, err := InitProject(t.TempDir(), domain.Project{Name: "idx"})
	if err != nil {
		t.Fatal(err)
	}
	return ph
}

func TestIndexSchemaMigratedAndHealthy(t *testing.T) {
	ph := newProject(t)
	ctx := context.Background()
	v, err := SchemaVersion(ctx, ph.Root)
	if err != nil || v != schemaVersion {
		t.Fatalf("schema=%d err=%v want %d", v, err, schemaVersion)
	}
	if _, err := os.Stat(IndexPath(ph.Root)); err != nil {
		t.Fatalf("index file missing: %v", err)
	}
	if err := CheckIndex(ctx, ph.Root); err != nil {
		t.Fatalf("CheckIndex: %v", err)
	}
	// Reopening must not re-run migrations.
	if v, _ := SchemaVersion(ctx, ph.Root); v != schemaVersion {
		t.Fatalf("schema changed on reopen: %d", v)
	}
}

func TestVersionImagesRoundTrip(t *testing.T) {
	ph := newProject(t)
	ctx := context.Background()
	if err := PutVersionImage(ctx, ph, "a", "image/png", []byte{1, 2, 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := PutVersionImage(ctx, ph, "a", "image/jpeg", []byte{4}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	mime, data, err := GetVersionImage(ctx, ph, "a")
	if err != nil || mime != "image/jpeg" || !bytes.Equal(data, []byte{4}) {
		t.Fatalf("get: %q %v %v", mime, data, err)
	}
	if _, _, err := GetVersionImage(ctx, ph, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := PutVersionImage(ctx, ph, "", "image/png", []byte{1}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestImportOriginalAndAddVersion(t *testing.T) {
	ph := newProject(t)
	ctx := context.Background()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 4))); err != nil {
		t.Fatal(err)
	}
	img, err := imagefile.Decode("o.png", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	orig, err := ImportOriginal(ctx, ph, img)
	if err != nil {
		t.Fatalf("ImportOriginal: %v", err)
	}
	if orig.ID != domain.OriginalVersionID || orig.Width != 8 {
		t.Fatalf("unexpected original %+v", orig)
	}
	if _, err := ImportOriginal(ctx, ph, img); err == nil {
		t.Fatalf("second import should fail")
	}
	v := domain.EditVersion{ID: "e1", Name: "Edit 1", MIMEType: "image/png", Width: 8, Height: 4}
	if err := AddVersion(ctx, ph, v, buf.Bytes()); err != nil {
		t.Fatalf("AddVersion: %v", err)
	}
	if err := AddVersion(ctx, ph, v, buf.Bytes()); err == nil {
		t.Fatalf("duplicate version should fail")
	}

	reopened, err := Open(ph.Root)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Project.ActiveVersionID != "e1" || len(reopened.Project.Versions) != 2 {
		t.Fatalf("manifest not updated: %+v", reopened.Project)
	}
	imgs, err := LoadImages(ctx, reopened)
	if err != nil || len(imgs) != 2 || imgs["e1"].Height != 4 {
		t.Fatalf("LoadImages: %v %+v", err, imgs)
	}
}

func TestMaskCheckpoints(t *testing.T) {
	ph := newProject(t)
	ctx := context.Background()
	blob, ts, err := LatestMaskCheckpoint(ctx, ph)
	if err != nil || blob != nil || !ts.IsZero() {
		t.Fatalf("empty index should have no checkpoint: %v", err)
	}
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		// 100ms and 1s offsets check that ordering is not fooled by trimmed fractions.
		ts := base.Add(time.Duration(i) * 100 * time.Millisecond)
		if err := SaveMaskCheckpoint(ctx, ph, []byte{byte(i)}, ts); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if err := SaveMaskCheckpoint(ctx, ph, []byte{9}, base.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	blob, ts, err = LatestMaskCheckpoint(ctx, ph)
	if err != nil || !bytes.Equal(blob, []byte{9}) || !ts.Equal(base.Add(time.Second)) {
		t.Fatalf("latest=%v ts=%v err=%v", blob, ts, err)
	}
	n, err := PruneMaskCheckpoints(ctx, ph, 2)
	if err != nil || n != 4 {
		t.Fatalf("prune removed %d err=%v, want 4", n, err)
	}
	if n, _ := PruneMaskCheckpoints(ctx, ph, 0); n != 0 {
		t.Fatalf("keepLast=0 must be a no-op")
	}
	blob, _, _ = LatestMaskCheckpoint(ctx, ph)
	if !bytes.Equal(blob, []byte{9}) {
		t.Fatalf("prune removed the newest checkpoint")
	}
}
