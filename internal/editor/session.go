/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor composes viewport, mask engine, history and versions into one editing session.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Gust4dev/VECT/internal/domain"
	"github.com/Gust4dev/VECT/internal/genai"
	"github.com/Gust4dev/VECT/internal/geom"
	"github.com/Gust4dev/VECT/internal/history"
	"github.com/Gust4dev/VECT/internal/imagefile"
	applog "github.com/Gust4dev/VECT/internal/log"
	"github.com/Gust4dev/VECT/internal/mask"
	"github.com/Gust4dev/VECT/internal/viewport"
)

var (
	ErrNoImage               = errors.New("no image loaded")
	ErrEmptyPrompt           = errors.New("prompt is empty")
	ErrGenerationInFlight    = errors.New("a generation is already in progress")
	ErrGenerationUnavailable = errors.New("image generation is not configured yet")
	ErrUnknownVersion        = errors.New("unknown version")
	ErrImageReplaced         = errors.New("the image was replaced while the generation ran")
)

// GenerationError wraps a failed generation. The session is unchanged and the request may be retried.
type GenerationError struct{ Err error }

func (e *GenerationError) Error() string   { return "generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error   { return e.Err }
func (e *GenerationError) Retryable() bool { return true }

// Button identifies the pointer button of a pointer event.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// Options configures a Session. Zero values select defaults.
type Options struct {
	Generator genai.Editor
	History   history.Config
	Style     *mask.Style
	BrushSize float64
	Now       func() time.Time
	NewID     func() string
}

// Session is one editor instance. All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	gen   genai.Editor
	now   func() time.Time
	newID func() string

	vp   *viewport.Controller
	hist *history.Stack
	eng  *mask.Engine

	tool  domain.Tool
	brush float64

	versions []domain.EditVersion
	images   map[string]imagefile.Image
	active   string

	generating bool
	epoch      uint64 // bumped whenever the image set is replaced
}

func New(opts Options) *Session {
	style := mask.DefaultStyle()
	if opts.Style != nil {
		style = *opts.Style
	}
	s := &Session{
		gen:    opts.Generator,
		now:    opts.Now,
		newID:  opts.NewID,
		vp:     viewport.New(),
		hist:   history.New(opts.History),
		tool:   domain.ToolBrush,
		brush:  domain.DefaultBrushSize,
		images: map[string]imagefile.Image{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if opts.BrushSize > 0 {
		s.brush = clampBrush(opts.BrushSize)
	}
	s.eng = mask.NewEngine(s.hist, style)
	return s
}

func clampBrush(v float64) float64 {
	return geom.Clamp(v, domain.MinBrushSize, domain.MaxBrushSize)
}

// State is a read-only snapshot for rendering.
type State struct {
	Tool          domain.Tool
	BrushSize     float64
	Scale         float64
	Offset        geom.Pt
	Panning       bool
	Gesture       mask.State
	HasMask       bool
	CanUndo       bool
	CanRedo       bool
	Generating    bool
	ActiveVersion string
	Versions      int
	Width, Height int
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.eng.Bounds()
	return State{
		Tool:          s.tool,
		BrushSize:     s.brush,
		Scale:         s.vp.Scale(),
		Offset:        s.vp.Offset(),
		Panning:       s.vp.Panning(),
		Gesture:       s.eng.State(),
		HasMask:       s.eng.HasMask(),
		CanUndo:       s.hist.CanUndo(),
		CanRedo:       s.hist.CanRedo(),
		Generating:    s.generating,
		ActiveVersion: s.active,
		Versions:      len(s.versions),
		Width:         b.Dx(),
		Height:        b.Dy(),
	}
}

// LoadImage replaces the session contents with a freshly uploaded image.
func (s *Session) LoadImage(img imagefile.Image) domain.EditVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := domain.EditVersion{
		ID:        domain.OriginalVersionID,
		Name:      "Original",
		Prompt:    "Upload Original",
		MIMEType:  img.MIMEType,
		Width:     img.Width,
		Height:    img.Height,
		CreatedAt: s.now(),
	}
	s.epoch++
	s.versions = []domain.EditVersion{v}
	s.images = map[string]imagefile.Image{v.ID: img}
	s.active = v.ID
	s.resetMaskLocked(img.Width, img.Height)
	s.vp.ResetView()
	applog.WithComponent("editor").Info("image loaded", "name", img.Name, "w", img.Width, "h", img.Height)
	return v
}

func (s *Session) resetMaskLocked(w, h int) {
	s.hist.Reset(nil)
	s.eng.Init(w, h)
}

func (s *Session) SetTool(t domain.Tool) {
	s.mu.Lock()
	s.tool = t
	s.mu.Unlock()
}

// SetBrushSize clamps to the supported range and returns the effective size.
func (s *Session) SetBrushSize(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brush = clampBrush(v)
	return s.brush
}

// SetViewOrigin sets the screen position of the image's top-left corner at zero pan.
func (s *Session) SetViewOrigin(p geom.Pt) {
	s.mu.Lock()
	s.vp.SetOrigin(p)
	s.mu.Unlock()
}

// ViewTransform maps image coordinates to screen coordinates.
func (s *Session) ViewTransform() geom.Affine2D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vp.Transform()
}

// PointerDown starts a pan (middle button, or the move and pan tools) or a mask gesture.
func (s *Session) PointerDown(p geom.Pt, b Button) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b == ButtonMiddle || s.tool == domain.ToolMove || s.tool == domain.ToolPan {
		s.vp.StartPan(p.X, p.Y)
		return
	}
	if b != ButtonPrimary {
		return
	}
	s.eng.Begin(s.tool, s.brush, s.vp.ToImage(p))
}

func (s *Session) PointerMove(p geom.Pt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vp.Panning() {
		s.vp.DoPan(p.X, p.Y)
		return
	}
	s.eng.Move(s.vp.ToImage(p))
}

func (s *Session) PointerUp(p geom.Pt, b Button) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vp.Panning() {
		s.vp.StopPan()
		return
	}
	s.eng.End()
}

// PointerLeave ends any pan and commits any gesture in progress.
func (s *Session) PointerLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vp.StopPan()
	s.eng.End()
}

func (s *Session) Wheel(deltaY float64) {
	s.mu.Lock()
	s.vp.HandleWheel(deltaY)
	s.mu.Unlock()
}

func (s *Session) ZoomIn() {
	s.mu.Lock()
	s.vp.ZoomIn()
	s.mu.Unlock()
}

func (s *Session) ZoomOut() {
	s.mu.Lock()
	s.vp.ZoomOut()
	s.mu.Unlock()
}

func (s *Session) ResetView() {
	s.mu.Lock()
	s.vp.ResetView()
	s.mu.Unlock()
}

// Undo finishes any gesture in progress and steps back one snapshot.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng.End()
	buf := s.eng.Image()
	if buf == nil || !s.hist.Undo(buf) {
		return false
	}
	s.eng.Refresh()
	return true
}

func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng.End()
	buf := s.eng.Image()
	if buf == nil || !s.hist.Redo(buf) {
		return false
	}
	s.eng.Refresh()
	return true
}

func (s *Session) ClearMask() {
	s.mu.Lock()
	s.eng.Clear()
	s.mu.Unlock()
}

// MaskImage returns a copy of the mask buffer, or nil before an image is loaded.
func (s *Session) MaskImage() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.eng.Image()
	if buf == nil {
		return nil
	}
	cp := image.NewNRGBA(buf.Rect)
	copy(cp.Pix, buf.Pix)
	return cp
}

// MaskPNG encodes the black/white mask.
func (s *Session) MaskPNG() ([]byte, error) {
	s.mu.Lock()
	g := s.eng.Binary()
	s.mu.Unlock()
	if g == nil {
		return nil, ErrNoImage
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Session) Versions() []domain.EditVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EditVersion(nil), s.versions...)
}

// ActiveVersion returns the active version and its image bytes.
func (s *Session) ActiveVersion() (domain.EditVersion, imagefile.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionLocked(s.active)
}

func (s *Session) VersionImage(id string) (imagefile.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, img, ok := s.versionLocked(id)
	return img, ok
}

func (s *Session) versionLocked(id string) (domain.EditVersion, imagefile.Image, bool) {
	for _, v := range s.versions {
		if v.ID == id {
			return v, s.images[id], true
		}
	}
	return domain.EditVersion{}, imagefile.Image{}, false
}

// SelectVersion makes id active. The mask survives unless the image size changes.
func (s *Session) SelectVersion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _, ok := s.versionLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, id)
	}
	s.activateLocked(v)
	return nil
}

// Generate sends the active image, the mask (if any) and prompt to the generator and appends
// the result as a new version. Only one call may be in flight per session.
//
// The new version becomes active unless the user selected another version meanwhile. A result
// that arrives after LoadImage or Restore replaced the image set is dropped with ErrImageReplaced.
func (s *Session) Generate(ctx context.Context, prompt string) (domain.EditVersion, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.EditVersion{}, ErrEmptyPrompt
	}
	s.mu.Lock()
	if s.gen == nil {
		s.mu.Unlock()
		return domain.EditVersion{}, ErrGenerationUnavailable
	}
	if s.generating {
		s.mu.Unlock()
		return domain.EditVersion{}, ErrGenerationInFlight
	}
	_, src, ok := s.versionLocked(s.active)
	if !ok {
		s.mu.Unlock()
		return domain.EditVersion{}, ErrNoImage
	}
	req := genai.EditRequest{Image: src.Data, ImageMIME: src.MIMEType, Prompt: prompt}
	if s.eng.HasMask() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, s.eng.Binary()); err == nil {
			req.Mask = buf.Bytes()
		}
	}
	s.generating = true
	epoch, source := s.epoch, s.active
	s.mu.Unlock()

	lg := applog.WithOperation(applog.WithComponent("editor"), "generate")
	lg.Info("generation started", "prompt_len", len(prompt), "masked", req.Mask != nil)
	res, err := s.gen.Edit(ctx, req)
	var img imagefile.Image
	if err == nil {
		img, err = imagefile.Decode("generated", res.Data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	if err == nil && s.epoch != epoch {
		err = ErrImageReplaced
	}
	if err != nil {
		lg.Warn("generation failed", "err", err)
		return domain.EditVersion{}, &GenerationError{Err: err}
	}
	if res.MIMEType != "" {
		img.MIMEType = res.MIMEType
	}
	v := domain.EditVersion{
		ID:        s.newID(),
		Name:      fmt.Sprintf("Edit %d", len(s.versions)),
		Prompt:    prompt,
		MIMEType:  img.MIMEType,
		Width:     img.Width,
		Height:    img.Height,
		CreatedAt: s.now(),
	}
	img.Name = v.ID
	s.versions = append(s.versions, v)
	s.images[v.ID] = img
	if s.active == source {
		s.activateLocked(v)
	}
	lg.Info("generation finished", "version", v.ID, "w", v.Width, "h", v.Height, "active", s.active == v.ID)
	return v, nil
}

// activateLocked makes v active, keeping the mask when the size matches.
func (s *Session) activateLocked(v domain.EditVersion) {
	s.eng.End()
	s.active = v.ID
	if b := s.eng.Bounds(); b.Dx() != v.Width || b.Dy() != v.Height {
		s.resetMaskLocked(v.Width, v.Height)
	}
}

// DiscardVersion removes a generated version, for instance one that could not be saved.
// If it was active, fallback (or else the previous version in the list) becomes active.
// The original cannot be discarded.
func (s *Session) DiscardVersion(id, fallback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == domain.OriginalVersionID {
		return fmt.Errorf("cannot discard the %s version", domain.OriginalVersionID)
	}
	idx := -1
	for i, v := range s.versions {
		if v.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, id)
	}
	s.versions = append(s.versions[:idx:idx], s.versions[idx+1:]...)
	delete(s.images, id)
	if s.active != id {
		return nil
	}
	if v, _, ok := s.versionLocked(fallback); ok {
		s.activateLocked(v)
	} else if len(s.versions) > 0 {
		s.activateLocked(s.versions[max(idx-1, 0)])
	} else {
		s.active = ""
	}
	return nil
}

// Restore reopens a saved project. images must hold every version listed in p; savedMask may be nil.
func (s *Session) Restore(p domain.Project, images map[string]imagefile.Image, savedMask image.Image) error {
	if len(p.Versions) == 0 {
		return errors.New("restore: project has no versions")
	}
	for _, v := range p.Versions {
		if _, ok := images[v.ID]; !ok {
			return fmt.Errorf("restore: missing image for version %s", v.ID)
		}
	}
	active := p.ActiveVersionID
	if _, ok := p.Version(active); !ok {
		active = p.Versions[len(p.Versions)-1].ID
	}
	av, _ := p.Version(active)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.versions = append([]domain.EditVersion(nil), p.Versions...)
	s.images = make(map[string]imagefile.Image, len(images))
	for k, v := range images {
		s.images[k] = v
	}
	s.active = active
	s.resetMaskLocked(av.Width, av.Height)
	if savedMask != nil && savedMask.Bounds().Size() == s.eng.Bounds().Size() {
		s.eng.Replace(savedMask)
		s.hist.Reset(s.eng.Image())
	}
	s.vp.ResetView()
	return nil
}
