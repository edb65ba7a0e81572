/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

//go:build fyne && cgo

package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/Gust4dev/VECT/internal/crash"
	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/editor"
	"github.com/Gust4dev/VECT/internal/export"
	"github.com/Gust4dev/VECT/internal/geom"
	applog "github.com/Gust4dev/VECT/internal/log"
	"github.com/Gust4dev/VECT/internal/mask"
	"github.com/Gust4dev/VECT/internal/version"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Run starts the desktop editor. projectDir, when set, is opened immediately.
func Run(projectDir string, opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	ws := NewWorkspace(opts)
	defer crash.Recover(ws.CrashState())

	if t := opts.General.Theme; t == "dark" || t == "light" {
		_ = os.Setenv("FYNE_THEME", t)
	}
	fyneApp := app.NewWithID("io.github.gust4dev.vect")
	w := fyneApp.NewWindow("VECT")
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1280), 800)
	winH := max(prefs.IntWithFallback("window.height", 820), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ws.RunCheckpoints(ctx)

	status := widget.NewLabel("Upload an image or open a project to start.")
	mc := NewMaskCanvas(ws.Session())

	var refresh func()

	// Tools
	toolNames := []string{}
	for _, t := range []domain.Tool{domain.ToolBrush, domain.ToolEraser, domain.ToolRectSelect, domain.ToolCircleSelect, domain.ToolMove} {
		toolNames = append(toolNames, t.String())
	}
	tools := widget.NewRadioGroup(toolNames, func(name string) {
		t, err := domain.ParseTool(name)
		if err != nil {
			return
		}
		ws.Session().SetTool(t)
		l.Debug("tool selected", slog.String("tool", name))
	})
	tools.Horizontal = true
	tools.Required = true
	tools.SetSelected(domain.ToolBrush.String())

	brushLabel := widget.NewLabel("")
	brush := widget.NewSlider(domain.MinBrushSize, domain.MaxBrushSize)
	brush.Step = 1
	brush.OnChanged = func(v float64) {
		got := ws.Session().SetBrushSize(v)
		brushLabel.SetText(fmt.Sprintf("Brush %.0f px", got))
	}
	brush.SetValue(ws.Session().State().BrushSize)

	undoAction := widget.NewToolbarAction(theme.ContentUndoIcon(), func() {
		ws.Session().Undo()
		refresh()
	})
	redoAction := widget.NewToolbarAction(theme.ContentRedoIcon(), func() {
		ws.Session().Redo()
		refresh()
	})
	toolbar := widget.NewToolbar(
		undoAction,
		redoAction,
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { ws.Session().ZoomIn(); refresh() }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { ws.Session().ZoomOut(); refresh() }),
		widget.NewToolbarAction(theme.ZoomFitIcon(), func() { ws.Session().ResetView(); refresh() }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DeleteIcon(), func() { ws.Session().ClearMask(); refresh() }),
	)

	// Versions
	var versions []domain.EditVersion
	versionList := widget.NewList(
		func() int { return len(versions) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if int(i) >= len(versions) {
				return
			}
			v := versions[i]
			o.(*widget.Label).SetText(fmt.Sprintf("%s  %s", v.Name, truncateLabel(v.Prompt, 28)))
		},
	)
	syncingList := false
	versionList.OnSelected = func(id widget.ListItemID) {
		if syncingList || int(id) >= len(versions) {
			return
		}
		if err := ws.SelectVersion(versions[id].ID); err != nil {
			dialog.ShowError(err, w)
		}
		refresh()
	}

	// Prompt and generation
	prompt := widget.NewMultiLineEntry()
	prompt.SetPlaceHolder("Describe the change, e.g. replace the facade cladding with dark timber")
	prompt.Wrapping = fyne.TextWrapWord
	var generate *widget.Button
	generate = widget.NewButtonWithIcon("Generate", theme.MediaPlayIcon(), func() {
		text := prompt.Text
		generate.Disable()
		status.SetText("Generating...")
		go func() {
			gctx, gcancel := context.WithTimeout(ctx, 3*time.Minute)
			defer gcancel()
			v, err := ws.Generate(gctx, text)
			fyne.Do(func() {
				if err != nil {
					l.Warn("generate failed", slog.Any("err", err))
					status.SetText(generationMessage(err))
				} else {
					status.SetText(fmt.Sprintf("Created %s.", v.Name))
				}
				refresh()
			})
		}()
	})

	refresh = func() {
		st := ws.Session().State()
		versions = ws.Session().Versions()
		syncingList = true
		for i, v := range versions {
			if v.ID == st.ActiveVersion {
				versionList.Select(widget.ListItemID(i))
			}
		}
		syncingList = false
		versionList.Refresh()
		if st.Generating || st.Width == 0 {
			generate.Disable()
		} else {
			generate.Enable()
		}
		w.SetTitle(ws.Title())
		mc.Refresh()
	}
	mc.OnChange = refresh

	// File actions
	uploadImage := func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			if _, err := ws.LoadImage(path); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Loaded " + filepath.Base(path))
			refresh()
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter(imageExtensions))
		fd.Show()
	}
	openDir := func(dir string) {
		if err := ws.Open(ctx, dir); err != nil {
			l.Error("open project failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		addRecentProject(prefs, dir)
		status.SetText("Opened " + dir)
		refresh()
	}
	newProject := func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			dir := uri.Path()
			name := widget.NewEntry()
			name.SetText(filepath.Base(dir))
			dialog.ShowForm("New project", "Choose image...", "Cancel", []*widget.FormItem{widget.NewFormItem("Name", name)}, func(ok bool) {
				if !ok {
					return
				}
				fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
					if err != nil || rc == nil {
						return
					}
					img := rc.URI().Path()
					_ = rc.Close()
					if err := ws.Create(ctx, dir, strings.TrimSpace(name.Text), img); err != nil {
						dialog.ShowError(err, w)
						return
					}
					addRecentProject(prefs, dir)
					status.SetText("Created project " + ws.Title())
					refresh()
				}, w)
				fd.SetFilter(fstorage.NewExtensionFileFilter(imageExtensions))
				fd.Show()
			}, w)
		}, w)
	}
	exportWith := func(label string, fn func() ([]string, error)) {
		paths, err := fn()
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText(fmt.Sprintf("%s: %s", label, strings.Join(paths, ", ")))
	}
	one := func(fn func(string) (string, error), name string) func() ([]string, error) {
		return func() ([]string, error) {
			if ws.Project() == nil {
				return nil, ErrNoProject
			}
			p, err := fn(name)
			return []string{p}, err
		}
	}

	recentMenu := fyne.NewMenuItem("Open Recent", nil)
	recentMenu.ChildMenu = fyne.NewMenu("")
	for _, dir := range loadRecentProjects(prefs) {
		recentMenu.ChildMenu.Items = append(recentMenu.ChildMenu.Items, fyne.NewMenuItem(dir, func() { openDir(dir) }))
	}
	openItem := fyne.NewMenuItem("Open Project...", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			openDir(uri.Path())
		}, w)
	})
	newItem := fyne.NewMenuItem("New Project...", newProject)
	uploadItem := fyne.NewMenuItem("Upload Image...", uploadImage)
	checkpointItem := fyne.NewMenuItem("Save Mask Checkpoint", func() {
		if err := ws.Checkpoint(ctx); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Mask checkpoint saved.")
	})
	newItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyN, Modifier: fyne.KeyModifierShortcutDefault}
	openItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierShortcutDefault}
	checkpointItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}

	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("Mask PNG", func() { exportWith("Mask", one(ws.ExportMask, "mask.png")) }),
		fyne.NewMenuItem("Overlay PNG", func() { exportWith("Overlay", one(ws.ExportOverlay, "overlay.png")) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Review Set (PDF + overlay)", func() {
			exportWith("Review", func() ([]string, error) { return ws.ExportPreset(export.PresetReview) })
		}),
		fyne.NewMenuItem("Handoff Archive (ZIP + mask)", func() {
			exportWith("Handoff", func() ([]string, error) { return ws.ExportPreset(export.PresetHandoff) })
		}),
	)
	w.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu("File", newItem, openItem, recentMenu, uploadItem, fyne.NewMenuItemSeparator(), checkpointItem),
		exportMenu,
	))

	for key, tool := range map[fyne.KeyName]domain.Tool{
		fyne.KeyB: domain.ToolBrush,
		fyne.KeyE: domain.ToolEraser,
		fyne.KeyR: domain.ToolRectSelect,
		fyne.KeyC: domain.ToolCircleSelect,
		fyne.KeyV: domain.ToolMove,
	} {
		w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierAlt}, func(fyne.Shortcut) {
			tools.SetSelected(tool.String())
		})
	}
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		ws.Session().Undo()
		refresh()
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		ws.Session().Redo()
		refresh()
	})

	side := container.NewBorder(
		container.NewVBox(widget.NewLabelWithStyle("Prompt", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), prompt, generate, widget.NewSeparator(),
			widget.NewLabelWithStyle("Versions", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})),
		nil, nil, nil,
		versionList,
	)
	top := container.NewVBox(container.NewHBox(tools, widget.NewSeparator(), brushLabel), brush, toolbar)
	split := container.NewHSplit(mc, side)
	split.Offset = 0.75
	w.SetContent(container.NewBorder(top, status, nil, nil, split))

	w.SetCloseIntercept(func() {
		prefs.SetInt("window.width", int(w.Canvas().Size().Width))
		prefs.SetInt("window.height", int(w.Canvas().Size().Height))
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ws.Close(cctx); err != nil {
			l.Warn("final checkpoint failed", slog.Any("err", err))
		}
		ccancel()
		w.Close()
	})

	if projectDir != "" {
		openDir(projectDir)
	}
	refresh()
	w.ShowAndRun()
	l.Info("UI closed")
	return nil
}

func generationMessage(err error) string {
	switch {
	case errors.Is(err, editor.ErrGenerationUnavailable):
		return "Generation is coming soon: no generator is configured."
	case errors.Is(err, editor.ErrEmptyPrompt):
		return "Enter a prompt first."
	case errors.Is(err, editor.ErrNoImage):
		return "Upload an image first."
	case errors.Is(err, editor.ErrGenerationInFlight):
		return "A generation is already running."
	}
	return "Generation failed: " + err.Error()
}

func truncateLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// MaskCanvas shows the active version with the mask overlay and routes pointer input to the session.
type MaskCanvas struct {
	widget.BaseWidget
	sess     *editor.Session
	OnChange func()

	mu     sync.Mutex
	baseID string
	base   image.Image
	last   geom.Pt
}

var (
	_ desktop.Mouseable = (*MaskCanvas)(nil)
	_ desktop.Hoverable = (*MaskCanvas)(nil)
	_ fyne.Draggable    = (*MaskCanvas)(nil)
	_ fyne.Scrollable   = (*MaskCanvas)(nil)
)

func NewMaskCanvas(sess *editor.Session) *MaskCanvas {
	mc := &MaskCanvas{sess: sess}
	mc.ExtendBaseWidget(mc)
	return mc
}

func (m *MaskCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := &maskCanvasRenderer{mc: m}
	r.raster = canvas.NewRaster(r.draw)
	return r
}

func (m *MaskCanvas) MinSize() fyne.Size { return fyne.NewSize(320, 240) }

// activeBase decodes the active version once per selection.
func (m *MaskCanvas) activeBase() image.Image {
	v, img, ok := m.sess.ActiveVersion()
	if !ok {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baseID == v.ID && m.base != nil {
		return m.base
	}
	px, err := img.Pixels()
	if err != nil {
		applog.WithComponent("ui").Warn("decode active image", slog.Any("err", err))
		return nil
	}
	m.baseID, m.base = v.ID, px
	return px
}

func (m *MaskCanvas) changed() {
	m.Refresh()
	if m.OnChange != nil {
		m.OnChange()
	}
}

func toPt(p fyne.Position) geom.Pt { return geom.Pt{X: float64(p.X), Y: float64(p.Y)} }

func toButton(b desktop.MouseButton) editor.Button {
	switch b {
	case desktop.MouseButtonTertiary:
		return editor.ButtonMiddle
	case desktop.MouseButtonSecondary:
		return editor.ButtonSecondary
	}
	return editor.ButtonPrimary
}

func (m *MaskCanvas) MouseDown(e *desktop.MouseEvent) {
	m.last = toPt(e.Position)
	m.sess.PointerDown(m.last, toButton(e.Button))
	m.Refresh()
}

func (m *MaskCanvas) MouseUp(e *desktop.MouseEvent) {
	m.last = toPt(e.Position)
	m.sess.PointerUp(m.last, toButton(e.Button))
	m.changed()
}

func (m *MaskCanvas) MouseIn(*desktop.MouseEvent) {}

func (m *MaskCanvas) MouseMoved(e *desktop.MouseEvent) {
	st := m.sess.State()
	if !st.Panning && st.Gesture == mask.Idle {
		return
	}
	m.last = toPt(e.Position)
	m.sess.PointerMove(m.last)
	m.Refresh()
}

func (m *MaskCanvas) MouseOut() {
	m.sess.PointerLeave()
	m.changed()
}

func (m *MaskCanvas) Dragged(e *fyne.DragEvent) {
	m.last = toPt(e.Position)
	m.sess.PointerMove(m.last)
	m.Refresh()
}

func (m *MaskCanvas) DragEnd() {
	m.sess.PointerUp(m.last, editor.ButtonPrimary)
	m.changed()
}

func (m *MaskCanvas) Scrolled(e *fyne.ScrollEvent) {
	// fyne reports scrolling up as positive DY
	m.sess.Wheel(-float64(e.Scrolled.DY))
	m.changed()
}

type maskCanvasRenderer struct {
	mc     *MaskCanvas
	raster *canvas.Raster
}

func (r *maskCanvasRenderer) Destroy()                     {}
func (r *maskCanvasRenderer) Objects() []fyne.CanvasObject { return []fyne.CanvasObject{r.raster} }
func (r *maskCanvasRenderer) MinSize() fyne.Size           { return r.mc.MinSize() }
func (r *maskCanvasRenderer) Refresh()                     { canvas.Refresh(r.raster) }

func (r *maskCanvasRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))
	st := r.mc.sess.State()
	if st.Width > 0 {
		r.mc.sess.SetViewOrigin(geom.Pt{
			X: (float64(size.Width) - float64(st.Width)) / 2,
			Y: (float64(size.Height) - float64(st.Height)) / 2,
		})
	}
}

func (r *maskCanvasRenderer) draw(w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	size := r.mc.Size()
	pixScale := 1.0
	if size.Width > 0 {
		pixScale = float64(w) / float64(size.Width)
	}
	var overlay image.Image
	if m := r.mc.sess.MaskImage(); m != nil {
		overlay = m
	}
	Compose(dst, r.mc.activeBase(), overlay, r.mc.sess.ViewTransform(), pixScale)
	return dst
}

// Recent projects live in fyne preferences as a JSON list.
const recentPrefsKey = "recent.projects"
const recentMax = 10

func loadRecentProjects(p fyne.Preferences) []string {
	var items []string
	if raw := p.StringWithFallback(recentPrefsKey, ""); strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := os.Stat(s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func addRecentProject(p fyne.Preferences, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, _ := filepath.Abs(path)
	out := []string{abs}
	for _, s := range loadRecentProjects(p) {
		if !strings.EqualFold(s, abs) {
			out = append(out, s)
		}
	}
	if len(out) > recentMax {
		out = out[:recentMax]
	}
	b, _ := json.Marshal(out)
	p.SetString(recentPrefsKey, string(b))
}
