/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Gust4dev/VECT/internal/config"
	"github.com/Gust4dev/VECT/internal/crash"
	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/editor"
	"github.com/Gust4dev/VECT/internal/export"
	"github.com/Gust4dev/VECT/internal/genai"
	"github.com/Gust4dev/VECT/internal/history"
	"github.com/Gust4dev/VECT/internal/imagefile"
	applog "github.com/Gust4dev/VECT/internal/log"
	"github.com/Gust4dev/VECT/internal/storage"
	"github.com/Gust4dev/VECT/internal/telemetry"
)

// ErrNoProject is returned by operations that need an open project.
var ErrNoProject = errors.New("no project open")

// Options configures the desktop editor.
type Options struct {
	Generator genai.Editor
	Editor    config.EditorConfig
	General   config.GeneralConfig
}

// OptionsFrom maps the application config.
func OptionsFrom(cfg config.AppConfig, gen genai.Editor) Options {
	return Options{Generator: gen, Editor: cfg.Editor, General: cfg.General}
}

// Workspace binds an editor session to an optional on-disk project. Without a project it edits
// in memory only; with one every generated version and selection is persisted.
type Workspace struct {
	mu   sync.Mutex
	opts Options
	sess *editor.Session
	ph   *storage.ProjectHandle
	cs   *crash.State
	log  *slog.Logger
}

func NewWorkspace(opts Options) *Workspace {
	w := &Workspace{
		opts: opts,
		sess: newSession(opts),
		log:  applog.WithComponent("ui"),
	}
	w.cs = &crash.State{Mask: w.maskCheckpointPNG}
	return w
}

func newSession(opts Options) *editor.Session {
	return editor.New(editor.Options{
		Generator: opts.Generator,
		BrushSize: opts.Editor.BrushSize,
		History:   history.Config{MaxEntries: opts.Editor.HistoryMaxEntries, MaxBytes: opts.Editor.HistoryMaxBytes()},
	})
}

func (w *Workspace) Session() *editor.Session { return w.sess }

// Project returns the open project handle, or nil.
func (w *Workspace) Project() *storage.ProjectHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ph
}

// Title is the window title for the current state.
func (w *Workspace) Title() string {
	if ph := w.Project(); ph != nil {
		return "VECT - " + ph.Project.Name
	}
	return "VECT"
}

// CrashState is handed to crash.Recover once; it tracks project changes for the workspace's lifetime.
func (w *Workspace) CrashState() *crash.State { return w.cs }

func (w *Workspace) setProject(ph *storage.ProjectHandle) {
	w.mu.Lock()
	w.ph = ph
	w.cs.Project = ph
	w.mu.Unlock()
}

// LoadImage starts an unsaved session on an image file.
func (w *Workspace) LoadImage(path string) (domain.EditVersion, error) {
	img, err := imagefile.ReadFile(path)
	if err != nil {
		return domain.EditVersion{}, err
	}
	w.setProject(nil)
	return w.sess.LoadImage(img), nil
}

// Create initialises a project in dir with imagePath as its original.
func (w *Workspace) Create(ctx context.Context, dir, name, imagePath string) error {
	img, err := imagefile.ReadFile(imagePath)
	if err != nil {
		return err
	}
	if name == "" {
		name = filepath.Base(dir)
	}
	ph, err := storage.InitProject(dir, domain.Project{Name: name})
	if err != nil {
		return err
	}
	if _, err := storage.ImportOriginal(ctx, ph, img); err != nil {
		return err
	}
	w.sess.LoadImage(img)
	w.setProject(ph)
	w.log.Info("project created", slog.String("root", ph.Root), slog.String("name", name))
	return nil
}

// Open loads a project, its images and the newest mask checkpoint.
func (w *Workspace) Open(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	ph, err := storage.Open(abs)
	if err != nil {
		return err
	}
	images, err := storage.LoadImages(ctx, ph)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	var saved image.Image
	if blob, _, err := storage.LatestMaskCheckpoint(ctx, ph); err == nil && len(blob) > 0 {
		if m, err := png.Decode(bytes.NewReader(blob)); err == nil {
			saved = m
		} else {
			w.log.Warn("ignoring unreadable mask checkpoint", slog.Any("err", err))
		}
	}
	if err := w.sess.Restore(ph.Project, images, saved); err != nil {
		return err
	}
	w.setProject(ph)
	w.log.Info("project opened", slog.String("root", abs), slog.Int("versions", len(ph.Project.Versions)))
	return nil
}

// Close forgets the project after a final checkpoint.
func (w *Workspace) Close(ctx context.Context) error {
	err := w.Checkpoint(ctx)
	if errors.Is(err, ErrNoProject) {
		err = nil
	}
	w.setProject(nil)
	return err
}

// Generate runs a generation and persists the new version when a project is open.
// If the version cannot be stored it is dropped from the session as well.
func (w *Workspace) Generate(ctx context.Context, prompt string) (domain.EditVersion, error) {
	hasMask := w.sess.State().HasMask
	prev, _, _ := w.sess.ActiveVersion()
	ph := w.Project()
	start := time.Now()
	v, err := w.sess.Generate(ctx, prompt)
	var genErr *editor.GenerationError
	if err == nil || errors.As(err, &genErr) {
		telemetry.Default().TrackGeneration(err == nil, time.Since(start), hasMask)
	}
	if err != nil {
		return v, err
	}
	if ph == nil {
		return v, nil
	}
	img, ok := w.sess.VersionImage(v.ID)
	if !ok {
		return v, fmt.Errorf("generated version %s has no image", v.ID)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ph != ph {
		// The project was closed while the request ran; the session keeps the result.
		return v, nil
	}
	if err := w.persistVersionLocked(ctx, v, img.Data); err != nil {
		if derr := w.sess.DiscardVersion(v.ID, prev.ID); derr != nil {
			w.log.Warn("discard unsaved version", "version", v.ID, "err", derr)
		}
		return domain.EditVersion{}, fmt.Errorf("persist version: %w", err)
	}
	return v, nil
}

// persistVersionLocked stores v. A failed store leaves the in-memory manifest as it was.
func (w *Workspace) persistVersionLocked(ctx context.Context, v domain.EditVersion, data []byte) error {
	versions, active := w.ph.Project.Versions, w.ph.Project.ActiveVersionID
	if err := storage.AddVersion(ctx, w.ph, v, data); err != nil {
		w.ph.Project.Versions, w.ph.Project.ActiveVersionID = versions, active
		return err
	}
	// AddVersion activates v; keep the selection the user made while the request ran.
	if cur, _, ok := w.sess.ActiveVersion(); ok && cur.ID != v.ID {
		w.ph.Project.ActiveVersionID = cur.ID
		if err := storage.Save(w.ph); err != nil {
			w.log.Warn("record active version", "version", cur.ID, "err", err)
		}
	}
	return nil
}

// SelectVersion switches the active version and records it in the manifest.
func (w *Workspace) SelectVersion(id string) error {
	if err := w.sess.SelectVersion(id); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ph == nil {
		return nil
	}
	w.ph.Project.ActiveVersionID = id
	return storage.Save(w.ph)
}

func (w *Workspace) maskCheckpointPNG() ([]byte, error) {
	m := w.sess.MaskImage()
	if m == nil {
		return nil, editor.ErrNoImage
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Checkpoint stores the mask in the project index and prunes old checkpoints.
func (w *Workspace) Checkpoint(ctx context.Context) error {
	ph := w.Project()
	if ph == nil {
		return ErrNoProject
	}
	blob, err := w.maskCheckpointPNG()
	if err != nil {
		return err
	}
	if err := storage.SaveMaskCheckpoint(ctx, ph, blob, time.Now()); err != nil {
		return err
	}
	if keep := w.opts.General.CheckpointsKeep; keep > 0 {
		if _, err := storage.PruneMaskCheckpoints(ctx, ph, keep); err != nil {
			return err
		}
	}
	return nil
}

// RunCheckpoints stores a checkpoint every General.CheckpointSeconds until ctx ends.
func (w *Workspace) RunCheckpoints(ctx context.Context) {
	secs := w.opts.General.CheckpointSeconds
	if secs <= 0 {
		return
	}
	t := time.NewTicker(time.Duration(secs) * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.Checkpoint(ctx); err != nil && !errors.Is(err, ErrNoProject) && !errors.Is(err, editor.ErrNoImage) {
				w.log.Warn("mask checkpoint failed", slog.Any("err", err))
			}
		}
	}
}

// maskImage avoids handing a typed nil to code that checks for a nil image.Image.
func (w *Workspace) maskImage() image.Image {
	if m := w.sess.MaskImage(); m != nil {
		return m
	}
	return nil
}

func (w *Workspace) activeImages() (map[string]imagefile.Image, error) {
	out := map[string]imagefile.Image{}
	for _, v := range w.sess.Versions() {
		img, ok := w.sess.VersionImage(v.ID)
		if !ok {
			return nil, fmt.Errorf("version %s has no image", v.ID)
		}
		out[v.ID] = img
	}
	return out, nil
}

// ExportMask writes the black/white mask; relative paths land in the project's exports folder.
func (w *Workspace) ExportMask(outPath string) (string, error) {
	m := w.sess.MaskImage()
	if m == nil {
		return "", editor.ErrNoImage
	}
	p, err := export.ExportMaskPNG(w.Project(), outPath, m)
	if err == nil {
		telemetry.Default().TrackExport("mask")
	}
	return p, err
}

// ExportOverlay writes the active image with the mask composited on top.
func (w *Workspace) ExportOverlay(outPath string) (string, error) {
	_, img, ok := w.sess.ActiveVersion()
	if !ok {
		return "", editor.ErrNoImage
	}
	base, err := img.Pixels()
	if err != nil {
		return "", err
	}
	p, err := export.ExportOverlayPNG(w.Project(), outPath, base, w.maskImage())
	if err == nil {
		telemetry.Default().TrackExport("overlay")
	}
	return p, err
}

// ExportPreset runs a batch export preset against the open project.
func (w *Workspace) ExportPreset(preset export.PresetName) ([]string, error) {
	ph := w.Project()
	if ph == nil {
		return nil, ErrNoProject
	}
	images, err := w.activeImages()
	if err != nil {
		return nil, err
	}
	paths, err := export.BatchExport(ph, images, w.maskImage(), export.BatchOptions{Preset: preset})
	if err == nil {
		telemetry.Default().TrackExport(string(preset))
	}
	return paths, err
}
