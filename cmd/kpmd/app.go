// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/kpmd/kpmd/internal/config"
	"github.com/kpmd/kpmd/internal/kpmmgr"
	"github.com/kpmd/kpmd/internal/lifecycle"
	"github.com/kpmd/kpmd/internal/logging"
	"github.com/kpmd/kpmd/internal/metrics"
	"github.com/kpmd/kpmd/internal/moddir"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every command handler receives an App and
	// builds its collaborators through open.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
		// configDir overrides the config directory lookup (tests).
		configDir string
		flags     rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		Stdout    io.Writer
		Stderr    io.Writer
		ConfigDir string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		LoadWithSource(ctx context.Context, opts config.LoadOptions) (config.Loaded, error)
	}

	// rootFlags holds the persistent flag values.
	rootFlags struct {
		configFile string
		verbose    bool
		moduleDir  string
		helper     string
	}

	// session is the per-invocation set of collaborators built from the
	// effective configuration.
	session struct {
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
		metrics *metrics.Metrics
		client  *kpmmgr.Client
		store   *moddir.Store
		manager *lifecycle.Manager
	}

	fileConfigProvider struct{}
)

// LoadWithSource implements ConfigProvider.
func (fileConfigProvider) LoadWithSource(ctx context.Context, opts config.LoadOptions) (config.Loaded, error) {
	return config.LoadWithSource(ctx, opts)
}

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = fileConfigProvider{}
	}
	return &App{
		Config:    deps.Config,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
		configDir: deps.ConfigDir,
	}
}

// loadConfig returns the effective configuration: file and environment,
// then command-line overrides.
func (a *App) loadConfig(ctx context.Context) (config.Loaded, error) {
	loaded, err := a.Config.LoadWithSource(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configFile,
		ConfigDirPath:  a.configDir,
	})
	if err != nil {
		return config.Loaded{}, err
	}
	if a.flags.moduleDir != "" {
		loaded.Config.ModuleDir = a.flags.moduleDir
	}
	if a.flags.helper != "" {
		loaded.Config.Helper.Path = a.flags.helper
	}
	if a.flags.verbose {
		loaded.Config.Log.Level = config.LogLevelDebug
	}
	return loaded, nil
}

// open loads the configuration and builds the collaborators for one
// command invocation.
func (a *App) open(ctx context.Context) (*session, error) {
	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config

	logger, err := logging.New(a.stderr, logging.Options{
		Level:      cfg.Log.Level.String(),
		Format:     logging.Format(cfg.Log.Format),
		Timestamps: cfg.Log.Format != config.LogFormatText,
	})
	if err != nil {
		return nil, err
	}
	if loaded.Path != "" {
		logger.Debug("configuration loaded", "path", loaded.Path)
	}

	timeout, err := cfg.Helper.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	moduleDir, err := filepath.Abs(cfg.ModuleDir)
	if err != nil {
		return nil, err
	}

	mt := metrics.New()
	client := kpmmgr.New(cfg.Helper.Path,
		kpmmgr.WithTimeout(timeout),
		kpmmgr.WithLogger(logger),
		kpmmgr.WithMetrics(mt),
	)
	store := moddir.New(moduleDir, cfg.ModuleExt, logger)

	return &session{
		cfg:     cfg,
		cfgPath: loaded.Path,
		logger:  logger,
		metrics: mt,
		client:  client,
		store:   store,
		manager: lifecycle.New(client, store, lifecycle.WithLogger(logger), lifecycle.WithMetrics(mt)),
	}, nil
}
