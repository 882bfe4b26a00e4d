package config

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"bond-log-enhancer/internal/domain"
	"bond-log-enhancer/internal/enhance"
	"bond-log-enhancer/internal/repository"
	"bond-log-enhancer/internal/service"
	"bond-log-enhancer/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config             domain.Config
	Logger             domain.Logger
	SupabaseClient     *repository.SupabaseClient
	RunRepository      domain.RunRepository
	Storage            domain.DocumentStorage
	Presets            *enhance.Registry
	EnhancementService *service.EnhancementService
}

// NewContainer creates a new dependency injection container from the environment.
func NewContainer() (*Container, error) {
	cfg := NewConfig()
	return NewContainerWith(cfg, logger.NewLogger(cfg.GetLogLevel()))
}

// NewContainerWith wires the dependencies for cfg. Without Supabase
// credentials runs are kept in memory and documents on local disk.
func NewContainerWith(cfg domain.Config, appLogger domain.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	presets := enhance.NewRegistry()
	if path := cfg.GetPresetsFile(); path != "" {
		loaded, err := presets.LoadPresets(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load presets: %w", err)
		}
		appLogger.Info("Presets loaded", "file", path, "count", len(loaded))
	}

	c := &Container{
		Config:  cfg,
		Logger:  appLogger,
		Presets: presets,
	}

	supabaseClient := repository.NewSupabaseClient(cfg, appLogger)
	if supabaseClient.Configured() {
		if err := supabaseClient.Initialize(); err != nil {
			return nil, err
		}
		c.SupabaseClient = supabaseClient
		c.RunRepository = repository.NewSupabaseRunRepository(supabaseClient, appLogger)
		c.Storage = repository.NewSupabaseStorage(
			cfg.GetSupabaseURL(),
			cfg.GetSupabaseKey(),
			cfg.GetEnhancedBucket(),
			&http.Client{Timeout: 2 * time.Minute},
		)
	} else {
		appLogger.Warn("Supabase not configured; using in-memory runs and local storage")
		c.RunRepository = repository.NewMemoryRunRepository()
		c.Storage = repository.NewLocalStorage(filepath.Join(cfg.GetOutputPath(), "store"))
	}

	c.EnhancementService = service.NewEnhancementService(cfg, c.RunRepository, c.Storage, presets, appLogger)
	return c, nil
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// Authenticated reports whether API requests must carry a Supabase token.
func (c *Container) Authenticated() bool {
	return c.SupabaseClient != nil
}
