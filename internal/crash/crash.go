/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file plus a best-effort save of the open project.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "github.com/Gust4dev/VECT/internal/log"
	"github.com/Gust4dev/VECT/internal/storage"
	"github.com/Gust4dev/VECT/internal/telemetry"
	"github.com/Gust4dev/VECT/internal/version"
)

// exitFn is swapped by tests.
var exitFn = os.Exit

// State is what Recover tries to salvage. Both fields are optional.
type State struct {
	Project *storage.ProjectHandle
	// Mask returns the current mask as PNG; it is stored as a mask checkpoint in the project index.
	Mask func() ([]byte, error)
}

// Recover captures a panic, logs it with the stack, writes a crash report, autosaves what it can
// and exits with status 2. It must be called directly by defer:
//
//	defer crash.Recover(st)
func Recover(st *State) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	var ph *storage.ProjectHandle
	if st != nil {
		ph = st.Project
	}
	reportPath, err := writeReport(ph, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if st != nil {
		salvage(l, st)
	}

	_, _ = fmt.Fprintf(os.Stderr, "VECT hit a fatal error. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	telemetry.Flush(ctx)
	cancel()
	exitFn(2)
}

func salvage(l *slog.Logger, st *State) {
	if st.Project == nil {
		return
	}
	if path, err := storage.AutosaveCrashSnapshot(st.Project); err != nil {
		l.Error("autosave crash snapshot failed", slog.Any("err", err))
	} else {
		l.Info("autosave crash snapshot written", slog.String("path", path))
	}
	if st.Mask == nil {
		return
	}
	png, err := st.Mask()
	if err != nil || len(png) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := storage.SaveMaskCheckpoint(ctx, st.Project, png, time.Now()); err != nil {
		l.Error("mask checkpoint on crash failed", slog.Any("err", err))
	}
}

func writeReport(ph *storage.ProjectHandle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if ph != nil && ph.Root != "" {
		dir = filepath.Join(ph.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("vect-crash-%s.log", now.Format("20060102-150405.000")))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "VECT Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ph != nil {
		fmt.Fprintf(&buf, "ProjectRoot: %s\n", ph.Root)
		fmt.Fprintf(&buf, "Project: %s (%d versions, active %q)\n", ph.Project.Name, len(ph.Project.Versions), ph.Project.ActiveVersionID)
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return path, err
	}

	// project paths stay out of the upload
	telemetry.UploadCrash(redact(buf.Bytes(), ph))
	return path, nil
}

func redact(report []byte, ph *storage.ProjectHandle) []byte {
	if ph == nil || ph.Root == "" {
		return report
	}
	return bytes.ReplaceAll(report, []byte(ph.Root), []byte("<project>"))
}
