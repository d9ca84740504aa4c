package extension

// Config holds the Storefront extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.storefront" or "storefront" keys).
type Config struct {
	// DisableRoutes prevents building the HTTP API.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for storefront routes (default: "/api").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Currency is the store currency as an ISO 4217 code (default: "inr").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// CartCacheSize bounds how many session carts stay in memory
	// (default: 4096).
	CartCacheSize int `json:"cart_cache_size" mapstructure:"cart_cache_size" yaml:"cart_cache_size"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:      "/api",
		Currency:      "inr",
		CartCacheSize: 4096,
	}
}
