/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
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
	"github.com/Gust4dev/VECT/internal/maskscript"
	"github.com/Gust4dev/VECT/internal/server"
	"github.com/Gust4dev/VECT/internal/storage"
	"github.com/Gust4dev/VECT/internal/telemetry"
	"github.com/Gust4dev/VECT/internal/ui"
	"github.com/Gust4dev/VECT/internal/version"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "VECT - masked image editing for architectural renders")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  vect version                              Show version")
	fmt.Fprintln(w, "  vect serve                                Run the backend API")
	fmt.Fprintln(w, "  vect init <dir> <name> [image]            Create a project, optionally importing its original")
	fmt.Fprintln(w, "  vect import <dir> <image>                 Import the original image of an empty project")
	fmt.Fprintln(w, "  vect open <dir>                           Print a project summary")
	fmt.Fprintln(w, "  vect check <dir>                          Verify the project index")
	fmt.Fprintln(w, "  vect mask <image> <script.yaml> <out.png> Replay a mask script and write the mask")
	fmt.Fprintln(w, "  vect edit <dir> <prompt> [script.yaml]    Generate a new version, optionally masked by a script")
	fmt.Fprintln(w, "  vect sheet <dir> <out.pdf>                Write a PDF with one page per version")
	fmt.Fprintln(w, "  vect export <dir> [review|handoff]        Run an export preset")
	fmt.Fprintln(w, "  vect key set <api-key> | key forget       Manage the Gemini API key in the OS keychain")
	fmt.Fprintln(w, "  vect ui [<dir>]                           Launch the desktop editor (build with -tags fyne)")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	cfg    config.AppConfig
	apiKey string
	out    io.Writer
	log    *slog.Logger
	crash  *crash.State
}

func run(args []string, stdout, stderr io.Writer) int {
	st := &crash.State{}
	defer crash.Recover(st)

	cfg, apiKey, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "Warning: config:", err)
	}
	applog.Init(logOptions(cfg.Logging))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		telemetry.Flush(ctx)
		cancel()
	}()

	c := &cli{cfg: cfg, apiKey: apiKey, out: stdout, log: applog.WithComponent("cli"), crash: st}
	c.log.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	if err := c.dispatch(args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			usage(stderr)
			return 2
		}
		c.log.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func logOptions(l config.LoggingConfig) applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

func need(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s", errUsage, what)
	}
	return nil
}

func (c *cli) dispatch(cmd string, args []string) error {
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(c.out, version.String())
		return nil
	case "help", "--help", "-h":
		usage(c.out)
		return nil
	case "serve":
		return c.serve()
	case "init":
		if err := need(args, 2, "init requires <dir> and <name>"); err != nil {
			return err
		}
		return c.initProject(args[0], args[1], optional(args, 2))
	case "import":
		if err := need(args, 2, "import requires <dir> and <image>"); err != nil {
			return err
		}
		return c.importOriginal(args[0], args[1])
	case "open":
		if err := need(args, 1, "open requires <dir>"); err != nil {
			return err
		}
		return c.open(args[0])
	case "check":
		if err := need(args, 1, "check requires <dir>"); err != nil {
			return err
		}
		return c.check(args[0])
	case "mask":
		if err := need(args, 3, "mask requires <image> <script.yaml> <out.png>"); err != nil {
			return err
		}
		return c.mask(args[0], args[1], args[2])
	case "edit":
		if err := need(args, 2, "edit requires <dir> and <prompt>"); err != nil {
			return err
		}
		return c.edit(args[0], args[1], optional(args, 2))
	case "sheet":
		if err := need(args, 2, "sheet requires <dir> and <out.pdf>"); err != nil {
			return err
		}
		return c.sheet(args[0], args[1])
	case "export":
		if err := need(args, 1, "export requires <dir>"); err != nil {
			return err
		}
		return c.exportPreset(args[0], optional(args, 1))
	case "key":
		return c.key(args)
	case "ui":
		return c.ui(optional(args, 0))
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func (c *cli) openProject(dir string) (*storage.ProjectHandle, error) {
	abs, _ := filepath.Abs(dir)
	ph, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	c.crash.Project = ph
	return ph, nil
}

// generator builds the configured editor. A missing key is not fatal: generation reports
// itself unavailable instead.
func (c *cli) generator(gcfg config.GenerationConfig) (genai.Editor, error) {
	gen, err := genai.NewEditor(gcfg, c.apiKey)
	if errors.Is(err, genai.ErrNoAPIKey) {
		c.log.Warn("generation disabled", slog.Any("err", err))
		return nil, nil
	}
	return gen, err
}

func (c *cli) serve() error {
	gcfg := c.cfg.Generation
	if strings.EqualFold(gcfg.Mode, "backend") {
		// the server is the backend; it talks to the model directly
		gcfg.Mode = "gemini"
	}
	gen, err := c.generator(gcfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var audit *server.Audit
	if dsn := c.cfg.Server.PostgresDSN; dsn != "" {
		audit, err = server.OpenAudit(ctx, dsn)
		if err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		defer func() { _ = audit.Close() }()
	}
	return server.New(server.ConfigFrom(c.cfg.Server), gen, audit).Run(ctx)
}

func (c *cli) initProject(dir, name, imagePath string) error {
	abs, _ := filepath.Abs(dir)
	c.log.Info("init project", slog.String("root", abs), slog.String("name", name))
	ph, err := storage.InitProject(abs, domain.Project{Name: name})
	if err != nil {
		return err
	}
	c.crash.Project = ph
	fmt.Fprintln(c.out, "Created project at", abs)
	if imagePath == "" {
		return nil
	}
	return c.importInto(ph, imagePath)
}

func (c *cli) importOriginal(dir, imagePath string) error {
	ph, err := c.openProject(dir)
	if err != nil {
		return err
	}
	return c.importInto(ph, imagePath)
}

func (c *cli) importInto(ph *storage.ProjectHandle, imagePath string) error {
	img, err := imagefile.ReadFile(imagePath)
	if err != nil {
		return err
	}
	v, err := storage.ImportOriginal(context.Background(), ph, img)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Imported %s (%dx%d %s)\n", filepath.Base(imagePath), v.Width, v.Height, v.MIMEType)
	return nil
}

func (c *cli) open(dir string) error {
	ph, err := c.openProject(dir)
	if err != nil {
		return err
	}
	p := ph.Project
	fmt.Fprintf(c.out, "Project: %s\n", p.Name)
	fmt.Fprintf(c.out, "Root: %s\n", ph.Root)
	fmt.Fprintf(c.out, "Versions: %d\n", len(p.Versions))
	for _, v := range p.Versions {
		mark := " "
		if v.ID == p.ActiveVersionID {
			mark = "*"
		}
		fmt.Fprintf(c.out, " %s %-10s %4dx%-4d %s  %s\n", mark, v.Name, v.Width, v.Height, v.CreatedAt.Format(time.RFC3339), v.Prompt)
	}
	return nil
}

func (c *cli) check(dir string) error {
	ph, err := c.openProject(dir)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := storage.CheckIndex(ctx, ph.Root); err != nil {
		return err
	}
	v, err := storage.SchemaVersion(ctx, ph.Root)
	if err != nil {
		return err
	}
	images, err := storage.LoadImages(ctx, ph)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Index ok (schema %d, %d images)\n", v, len(images))
	return nil
}

func (c *cli) newSession(gen genai.Editor) *editor.Session {
	ec := c.cfg.Editor
	return editor.New(editor.Options{
		Generator: gen,
		BrushSize: ec.BrushSize,
		History:   history.Config{MaxEntries: ec.HistoryMaxEntries, MaxBytes: ec.HistoryMaxBytes()},
	})
}

func (c *cli) mask(imagePath, scriptPath, outPath string) error {
	img, err := imagefile.ReadFile(imagePath)
	if err != nil {
		return err
	}
	sc, err := maskscript.Load(scriptPath)
	if err != nil {
		return err
	}
	s := c.newSession(nil)
	s.LoadImage(img)
	if err := maskscript.Apply(s, sc); err != nil {
		return err
	}
	data, err := s.MaskPNG()
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Wrote", outPath)
	return nil
}

func (c *cli) edit(dir, prompt, scriptPath string) error {
	gen, err := c.generator(c.cfg.Generation)
	if err != nil {
		return err
	}
	ws := ui.NewWorkspace(ui.OptionsFrom(c.cfg, gen))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := ws.Open(ctx, dir); err != nil {
		return err
	}
	c.crash.Project = ws.Project()
	if scriptPath != "" {
		sc, err := maskscript.Load(scriptPath)
		if err != nil {
			return err
		}
		if err := maskscript.Apply(ws.Session(), sc); err != nil {
			return err
		}
	}
	v, err := ws.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	if err := ws.Checkpoint(ctx); err != nil {
		c.log.Warn("mask checkpoint failed", slog.Any("err", err))
	}
	fmt.Fprintf(c.out, "Created %s (%s, %dx%d)\n", v.Name, v.ID, v.Width, v.Height)
	return nil
}

func (c *cli) sheet(dir, outPath string) error {
	ph, err := c.openProject(dir)
	if err != nil {
		return err
	}
	images, err := storage.LoadImages(context.Background(), ph)
	if err != nil {
		return err
	}
	p, err := export.VersionSheetPDF(ph, images, outPath, export.SheetOptions{})
	if err != nil {
		return err
	}
	telemetry.Default().TrackExport("pdf")
	fmt.Fprintln(c.out, "Wrote", p)
	return nil
}

func (c *cli) exportPreset(dir, preset string) error {
	ph, err := c.openProject(dir)
	if err != nil {
		return err
	}
	ctx := context.Background()
	images, err := storage.LoadImages(ctx, ph)
	if err != nil {
		return err
	}
	var m image.Image
	if blob, _, err := storage.LatestMaskCheckpoint(ctx, ph); err == nil && len(blob) > 0 {
		if dec, err := png.Decode(bytes.NewReader(blob)); err == nil {
			m = dec
		}
	}
	name := export.PresetName(strings.ToLower(preset))
	if name == "" {
		name = export.PresetReview
	}
	paths, err := export.BatchExport(ph, images, m, export.BatchOptions{Preset: name})
	if err != nil {
		return err
	}
	telemetry.Default().TrackExport(string(name))
	for _, p := range paths {
		fmt.Fprintln(c.out, "Wrote", p)
	}
	return nil
}

func (c *cli) key(args []string) error {
	switch optional(args, 0) {
	case "set":
		if err := need(args, 2, "key set requires <api-key>"); err != nil {
			return err
		}
		if err := config.Save(c.cfg, strings.TrimSpace(args[1])); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "API key stored in the OS keychain.")
		return nil
	case "forget":
		if err := config.ForgetAPIKey(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "API key removed.")
		return nil
	}
	return fmt.Errorf("%w: key requires set <api-key> or forget", errUsage)
}

func (c *cli) ui(dir string) error {
	gen, err := c.generator(c.cfg.Generation)
	if err != nil {
		return err
	}
	return ui.Run(dir, ui.OptionsFrom(c.cfg, gen))
}
