/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/storage"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "VECT Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") || !strings.Contains(s, "stacktrace") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesFileInProjectBackups(t *testing.T) {
	root := t.TempDir()
	ph := &storage.ProjectHandle{Root: root, ManifestPath: filepath.Join(root, storage.ManifestFileName), Project: domain.Project{Name: "Villa"}}

	path, err := writeReport(ph, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, storage.BackupsDirName) {
		t.Fatalf("expected crash report under backups dir, got %s", path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "Project: Villa") {
		t.Fatalf("project line missing: %s", b)
	}
}

func TestRedactStripsProjectRoot(t *testing.T) {
	ph := &storage.ProjectHandle{Root: "/home/ana/villa"}
	got := redact([]byte("ProjectRoot: /home/ana/villa\n"), ph)
	if bytes.Contains(got, []byte("/home/ana")) || !bytes.Contains(got, []byte("<project>")) {
		t.Fatalf("redact = %q", got)
	}
}

func TestRecoverSavesProjectAndMask(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	ph, err := storage.InitProject(root, domain.Project{Name: "Crashy"})
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	mask := []byte("\x89PNG fake mask")
	st := &State{Project: ph, Mask: func() ([]byte, error) { return mask, nil }}

	func() {
		defer Recover(st)
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	bdir := filepath.Join(root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	var report, snapshot bool
	for _, f := range files {
		name := f.Name()
		switch {
		case strings.HasPrefix(name, "vect-crash-") && strings.HasSuffix(name, ".log"):
			b, _ := os.ReadFile(filepath.Join(bdir, name))
			report = bytes.Contains(b, []byte("Panic: boom"))
		case strings.HasPrefix(name, storage.ManifestFileName+".crash-"):
			snapshot = true
		}
	}
	if !report || !snapshot {
		t.Fatalf("report=%v snapshot=%v in %v", report, snapshot, files)
	}
	got, _, err := storage.LatestMaskCheckpoint(context.Background(), ph)
	if err != nil || !bytes.Equal(got, mask) {
		t.Fatalf("mask checkpoint = %q, %v", got, err)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	oldExit := exitFn
	exitFn = func(int) { t.Fatal("exit called without panic") }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(nil)
	}()
}
