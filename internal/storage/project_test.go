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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gust4dev/VECT/internal/domain"
)

func TestInitProjectCreatesStructureAndManifest(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, domain.Project{Name: "Test Project"})
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	b, err := os.ReadFile(ph.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got domain.Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.Name != "Test Project" || got.ID == "" || got.CreatedAt.IsZero() || got.LastModified.IsZero() {
		t.Fatalf("manifest not filled in: %+v", got)
	}
	for _, d := range []string{ExportsDirName, BackupsDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	if _, err := InitProject("  ", domain.Project{}); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, domain.Project{Name: "Backup Test"})
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ph.Project.Description = "changed"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	found := false
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), ManifestFileName+".") && strings.HasSuffix(e.Name(), ".bak") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no backup written")
	}
}

func TestOpenFallsBackToBackupOnCorruptManifest(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, domain.Project{Name: "Good"})
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(ph); err != nil { // creates a backup of the good manifest
		t.Fatal(err)
	}
	if err := os.WriteFile(ph.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.Project.Name != "Good" {
		t.Fatalf("fallback returned %+v", got.Project)
	}
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, domain.Project{Name: "Crashy"})
	if err != nil {
		t.Fatal(err)
	}
	ph.Project.Description = "unsaved"
	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(b), "unsaved") {
		t.Fatalf("crash snapshot content wrong: %v", err)
	}
	m, _ := os.ReadFile(ph.ManifestPath)
	if strings.Contains(string(m), "unsaved") {
		t.Fatalf("crash snapshot must not touch the manifest")
	}
}
