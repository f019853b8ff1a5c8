package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/agilira/orpheus"

	"fflagdump/internal/cache"
	"fflagdump/internal/config"
	"fflagdump/internal/errcode"
	"fflagdump/internal/extract"
)

const version = "0.3.0"

// cli holds the orpheus app and the streams handlers write to.
type cli struct {
	app    *orpheus.App
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

func newCLI(ctx context.Context, stdout, stderr io.Writer) *cli {
	c := &cli{
		app: orpheus.New("fflagdump").
			SetDescription("Extract FastVar feature flags from PE32+ executables").
			SetVersion(version),
		ctx:    ctx,
		stdout: stdout,
		stderr: stderr,
	}
	c.setupDumpCommands()
	c.setupSettingsCommand()
	c.setupCacheCommands()
	c.setupSitesCommand()
	c.setupGraphCommand()
	return c
}

func (c *cli) Run(args []string) error {
	return c.app.Run(args)
}

// withCommon adds the flags every command accepts.
func withCommon(cmd *orpheus.Command) *orpheus.Command {
	cmd.AddFlag("config", "c", "", "config file (default $"+config.EnvConfig+")")
	cmd.AddFlag("log-level", "", "", "debug|info|warn|error (overrides config)")
	return cmd
}

// env is the per-invocation state built from the common flags.
type env struct {
	cfg config.Config
	log *slog.Logger
}

func (c *cli) env(ctx *orpheus.Context) (*env, error) {
	cfg, err := config.Load(ctx.GetFlagString("config"))
	if err != nil {
		return nil, err
	}
	if lvl := ctx.GetFlagString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(c.stderr, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(c.stderr, opts)
	}
	return &env{cfg: cfg, log: slog.New(h)}, nil
}

// extractor builds an Extractor over a local executable. Without an
// explicit version the file digest names the build.
func (e *env) extractor(exe string, useCache bool) (*extract.Extractor, error) {
	dec, err := e.cfg.Decoder(e.log)
	if err != nil {
		return nil, err
	}
	ex := &extract.Extractor{
		Source:   extract.FileBinary{Path: exe},
		Versions: extract.FileDigest{Path: exe},
		Decoder:  dec,
		Logger:   e.log,
	}
	if useCache {
		ex.Cache = cache.Open(e.cfg.CachePath, e.log)
	}
	return ex, nil
}

func requireArg(ctx *orpheus.Context, i int, name string) (string, error) {
	v := ctx.GetArg(i)
	if v == "" {
		return "", errcode.New(errcode.Config, "missing argument").WithContext("arg", name)
	}
	return v, nil
}
