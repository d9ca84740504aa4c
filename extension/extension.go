// Package extension provides the Forge extension adapter for Storefront.
//
// It implements the forge.Extension interface to integrate the storefront
// engine into a Forge application with DI registration and lifecycle
// management. When routes are enabled the HTTP API is registered in the
// container as *api.Server for the host to mount.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.storefront" or
// "storefront" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/api"
	"github.com/xraph/storefront/store"
	"github.com/xraph/storefront/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "storefront"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Cart, coupon and checkout engine for NFC/QR storefronts"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Storefront as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *storefront.Storefront
	server     *api.Server
	store      store.Store
	engineOpts []storefront.Option
	apiOpts    []api.Option
}

// New creates a new Storefront Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Storefront instance.
// This is nil until Register is called.
func (e *Extension) Engine() *storefront.Storefront { return e.engine }

// Server returns the HTTP API, nil when routes are disabled or before
// Register is called.
func (e *Extension) Server() *api.Server { return e.server }

// Register implements [forge.Extension]. It loads configuration,
// initializes the storefront engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	eng, err := storefront.New(e.store, e.buildEngineOpts()...)
	if err != nil {
		return err
	}
	e.engine = eng

	if err := vessel.Provide(fapp.Container(), func() (*storefront.Storefront, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	e.server = api.New(e.engine, e.buildAPIOpts()...)
	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("storefront: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(ctx); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("storefront: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs storefront.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []storefront.Option {
	opts := make([]storefront.Option, 0, len(e.engineOpts)+3)

	if e.config.Currency != "" {
		opts = append(opts, storefront.WithCurrency(e.config.Currency))
	}
	if e.config.CartCacheSize > 0 {
		opts = append(opts, storefront.WithCartCacheSize(e.config.CartCacheSize))
	}
	if e.config.DisableMigrate {
		opts = append(opts, storefront.WithoutMigrate())
	}

	// Append any pass-through options last so they win.
	opts = append(opts, e.engineOpts...)

	return opts
}

func (e *Extension) buildAPIOpts() []api.Option {
	opts := make([]api.Option, 0, len(e.apiOpts)+1)
	if e.config.BasePath != "" {
		opts = append(opts, api.WithBasePath(e.config.BasePath))
	}
	return append(opts, e.apiOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("storefront: configuration is required but not found in config files; " +
				"ensure 'extensions.storefront' or 'storefront' key exists in your config")
		}

		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("storefront: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("currency", e.config.Currency),
		forge.F("cart_cache_size", e.config.CartCacheSize),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.storefront", "storefront"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("storefront: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("storefront: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.CartCacheSize == 0 {
		cfg.CartCacheSize = defaults.CartCacheSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.CartCacheSize == 0 && programmaticConfig.CartCacheSize != 0 {
		yamlConfig.CartCacheSize = programmaticConfig.CartCacheSize
	}

	return e.mergeWithDefaults(yamlConfig)
}
