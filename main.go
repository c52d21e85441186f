package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("snapstudio"),
		kong.UsageOnError(),
	)
	if err := cliCtx.Run(); err != nil {
		return err
	}

	return nil
}

type serveCmd struct {
	RootDir   string `arg:"" help:"Root directory with the photos to edit"`
	OutputDir string `help:"Directory for exported images (defaults to <root>/output)"`
	Settings  string `help:"Path to the settings file (defaults to <root>/.snapstudio.json)"`
	APIKey    string `env:"GEMINI_API_KEY" help:"API key for the generative image service"`
	Model     string `help:"Generative image model to use"`
	Open      bool   `help:"Open the browser automatically when the server starts" default:"true"`
	Verbose   bool   `help:"Enable verbose logging" default:"false"`
}

func (cmd *serveCmd) Run() error {
	level := zerolog.InfoLevel
	if cmd.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctx = log.Logger.WithContext(ctx)

	if cmd.APIKey == "" {
		log.Warn().Msg("No API key configured; remote image operations will fail")
	}
	outputDir := cmd.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(cmd.RootDir, "output")
	}
	settingsPath := cmd.Settings
	if settingsPath == "" {
		settingsPath = filepath.Join(cmd.RootDir, ".snapstudio.json")
	}

	sessions := NewSessionManager(
		NewGeminiClient(cmd.APIKey, cmd.Model),
		ExportExecutor{OutputDir: outputDir},
	)

	app := NewWebApp(Config{
		RootDir:   cmd.RootDir,
		OutputDir: outputDir,
		Sessions:  sessions,
		Settings:  NewFileSettingsStore(settingsPath),
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down web application...")
		},
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cmd.Open {
				if err := openBrowser(addr); err != nil {
					log.Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
	})

	if err := app.Run(ctx); err != nil {
		return err
	}

	return nil
}

type cliArgs struct {
	Serve serveCmd `cmd:"" default:"withargs"`
}

func openBrowser(addr string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", addr).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", addr).Start()
	default:
		return exec.Command("xdg-open", addr).Start()
	}
}
