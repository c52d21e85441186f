package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/rs/zerolog/log"
)

type Config struct {
	RootDir          string
	OutputDir        string
	Sessions         *SessionManager
	Settings         SettingsStore
	OnBeforeShutdown func()
	OnReady          func(addr string)
}

type WebApp struct {
	config       Config
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

func NewWebApp(config Config) *WebApp {
	return &WebApp{
		config:     config,
		shutdownCh: make(chan struct{}),
	}
}

func (a *WebApp) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// statusForError maps the pipeline error taxonomy to HTTP status codes so
// the front end can give actionable messages.
func statusForError(err error) int {
	var remoteErr *RemoteError
	switch {
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.As(err, &remoteErr):
		if remoteErr.Category == RemoteErrTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// newApp builds the fiber application with all routes registered. Run wires
// it to a listener; tests drive it directly.
func (a *WebApp) newApp() *fiber.App {
	webapp := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Ctx(c.Context()).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request failed")
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				if fiberErr.Code == http.StatusNotFound && c.Path() == "/favicon.ico" {
					return nil
				}
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		},
	})
	a.registerRoutes(webapp)
	return webapp
}

func (a *WebApp) Run(ctx context.Context) error {
	webapp := a.newApp()

	webapp.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := a.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-a.shutdownCh:
		}
		if fn := a.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if err := webapp.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	// Let the OS assign a random available port
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", 0))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := webapp.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (a *WebApp) registerRoutes(webapp *fiber.App) {
	filesRoot := http.Dir(a.config.RootDir)

	webapp.Get("/api/view", func(c *fiber.Ctx) error {
		filePath := c.Query("file")
		return filesystem.SendFile(c, filesRoot, filePath)
	})

	webapp.Get("/api/photos", func(c *fiber.Ctx) error {
		dir, err := walkImages(a.config.RootDir)
		if err != nil {
			return fmt.Errorf("failed to walk dir: %w", err)
		}
		for i := range dir.Files {
			dir.Files[i].URL = "/api/view?file=" + url.QueryEscape(dir.Files[i].Name)
		}
		return c.JSON(dir)
	})

	webapp.Get("/api/settings", func(c *fiber.Ctx) error {
		settings, err := a.config.Settings.Load()
		if err != nil {
			return err
		}
		return c.JSON(settings)
	})

	webapp.Put("/api/settings", func(c *fiber.Ctx) error {
		settings, err := a.config.Settings.Load()
		if err != nil {
			return err
		}
		if err := c.BodyParser(&settings); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		settings.ColorGrading.reconcilePreset()
		if err := a.config.Settings.Save(settings); err != nil {
			return err
		}
		return c.JSON(settings)
	})

	// Grading edits go through the setters so a numeric edit diverges the
	// preset to custom, while a preset selection overwrites all four values.
	webapp.Patch("/api/settings/grading", func(c *fiber.Ctx) error {
		settings, err := a.config.Settings.Load()
		if err != nil {
			return err
		}
		var request struct {
			Preset     *GradingPreset `json:"preset"`
			Saturation *int           `json:"saturation"`
			Contrast   *int           `json:"contrast"`
			Brightness *int           `json:"brightness"`
			Warmth     *int           `json:"warmth"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if request.Preset != nil {
			settings.ColorGrading.ApplyPreset(*request.Preset)
		}
		if request.Saturation != nil {
			settings.ColorGrading.SetSaturation(*request.Saturation)
		}
		if request.Contrast != nil {
			settings.ColorGrading.SetContrast(*request.Contrast)
		}
		if request.Brightness != nil {
			settings.ColorGrading.SetBrightness(*request.Brightness)
		}
		if request.Warmth != nil {
			settings.ColorGrading.SetWarmth(*request.Warmth)
		}
		if err := a.config.Settings.Save(settings); err != nil {
			return err
		}
		return c.JSON(settings.ColorGrading)
	})

	webapp.Post("/api/sessions", func(c *fiber.Ctx) error {
		var request struct {
			File string `json:"file"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		img, err := a.loadPhoto(request.File)
		if err != nil {
			return err
		}
		session := a.config.Sessions.Create(img, request.File)
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"id":     session.ID,
			"file":   session.SourceFile,
			"status": session.Status(),
		})
	})

	webapp.Get("/api/sessions/:id", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		return c.JSON(session.Status())
	})

	webapp.Get("/api/sessions/:id/image", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		img := session.CurrentImage()
		c.Set(fiber.HeaderContentType, img.MIME)
		return c.Send(img.Data)
	})

	webapp.Post("/api/sessions/:id/transform", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		var state TransformState
		if err := c.BodyParser(&state); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		session.CommitTransform(state)
		return c.JSON(session.Status())
	})

	webapp.Post("/api/sessions/:id/undo", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		session.Undo()
		return c.JSON(session.Status())
	})

	webapp.Post("/api/sessions/:id/redo", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		session.Redo()
		return c.JSON(session.Status())
	})

	// Custom resolution edits need the session image's aspect ratio for the
	// dimension lock, so they are scoped under the session.
	webapp.Patch("/api/sessions/:id/resolution", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		var request struct {
			Width             *int  `json:"width"`
			Height            *int  `json:"height"`
			AspectRatioLocked *bool `json:"aspect_ratio_locked"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		settings, err := a.config.Settings.Load()
		if err != nil {
			return err
		}
		width, height, err := decodeDimensions(session.CurrentImage())
		if err != nil {
			return err
		}
		originalAR := float64(width) / float64(height)

		if request.AspectRatioLocked != nil {
			settings.Resolution.AspectRatioLocked = *request.AspectRatioLocked
		}
		if request.Width != nil {
			settings.Resolution.SetCustomWidth(*request.Width, originalAR)
		}
		if request.Height != nil {
			settings.Resolution.SetCustomHeight(*request.Height, originalAR)
		}
		if err := a.config.Settings.Save(settings); err != nil {
			return err
		}
		return c.JSON(settings.Resolution)
	})

	webapp.Post("/api/sessions/:id/background/remove", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		if err := a.config.Sessions.RemoveBackground(c.Context(), session); err != nil {
			return err
		}
		return c.JSON(session.Status())
	})

	webapp.Post("/api/sessions/:id/generate", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}
		var request struct {
			Scene          string `json:"scene"`
			Style          string `json:"style"`
			AspectRatio    string `json:"aspect_ratio"`
			BackgroundFile string `json:"background_file"`
		}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		var background *Image
		if request.BackgroundFile != "" {
			img, err := a.loadPhoto(request.BackgroundFile)
			if err != nil {
				return err
			}
			background = &img
		}
		if err := a.config.Sessions.Generate(c.Context(), session, request.Scene, request.Style, request.AspectRatio, background); err != nil {
			return err
		}
		return c.JSON(session.Status())
	})

	webapp.Post("/api/sessions/:id/finalize", func(c *fiber.Ctx) error {
		session, err := a.session(c)
		if err != nil {
			return err
		}

		settings, err := a.config.Settings.Load()
		if err != nil {
			return err
		}
		request := struct {
			Viewport    Viewport            `json:"viewport"`
			Enhancement EnhancementSettings `json:"enhancement"`
			Settings    *ExportSettings     `json:"settings"`
			Variants    []ExportOperation   `json:"variants"`
		}{}
		if err := c.BodyParser(&request); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if request.Settings != nil {
			settings = *request.Settings
		}
		if request.Enhancement.Prompt == "" {
			request.Enhancement.Prompt = settings.DefaultPrompt
		}

		result, err := a.config.Sessions.Finalize(c.Context(), session, request.Viewport, settings, request.Enhancement, request.Variants)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		outPath := filepath.Join(a.config.OutputDir, result.Filename)
		if err := os.WriteFile(outPath, result.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		return c.JSON(fiber.Map{
			"filename": result.Filename,
			"path":     outPath,
			"mime":     result.MIME,
			"width":    result.Width,
			"height":   result.Height,
		})
	})

	webapp.Post("/api/shutdown", func(c *fiber.Ctx) error {
		a.Shutdown()
		return nil
	})
}

func (a *WebApp) session(c *fiber.Ctx) (*Session, error) {
	session, ok := a.config.Sessions.Get(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(http.StatusNotFound, "session not found")
	}
	return session, nil
}

// loadPhoto resolves a listing-relative file name inside the photo root.
func (a *WebApp) loadPhoto(name string) (Image, error) {
	if name == "" {
		return Image{}, fiber.NewError(http.StatusBadRequest, "file is required")
	}
	path := filepath.Join(a.config.RootDir, filepath.Clean("/"+name))
	return loadImage(path)
}
