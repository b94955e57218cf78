package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdbook-backlinks/internal/backlinks"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// DefaultMdbookVersion is the range of host versions the preprocessor
// protocol is known to match.
const DefaultMdbookVersion = "^0.4.0"

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Backlinks BacklinksConfig   `yaml:"backlinks"`
	Store     StoreConfig       `yaml:"store"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Backlinks.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel      slog.Level `yaml:"log_level"`
	HTTP          HTTPConfig `yaml:"http"`
	MdbookVersion string     `yaml:"mdbook_version"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MdbookVersion, validation.Required),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// BacklinksConfig controls how the block is rendered and how bad links are
// treated. The same keys can be set per book in book.toml under
// [preprocessor.backlinks].
type BacklinksConfig struct {
	Heading       string `yaml:"heading" json:"heading"`
	OnEscape      string `yaml:"on_escape" json:"on-escape"`
	OnRenderError string `yaml:"on_render_error" json:"on-render-error"`
}

// Validate validates the backlinks configuration.
func (c *BacklinksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Heading, validation.Required),
		validation.Field(&c.OnEscape, validation.Required,
			validation.In(string(backlinks.EscapeFail), string(backlinks.EscapeSkip))),
		validation.Field(&c.OnRenderError, validation.Required,
			validation.In(string(backlinks.RenderSkip), string(backlinks.RenderFail))),
	)
}

// ProcessorOptions converts the configuration into processor options.
func (c *BacklinksConfig) ProcessorOptions(logger *slog.Logger) backlinks.Options {
	return backlinks.Options{
		Heading:       c.Heading,
		OnEscape:      backlinks.EscapePolicy(c.OnEscape),
		OnRenderError: backlinks.RenderPolicy(c.OnRenderError),
		Logger:        logger,
	}
}

// StoreConfig holds the SQLite database the backlink graph is persisted to.
// An empty Path disables persistence in the preprocessor.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Require fails when no database is configured.
func (c *StoreConfig) Require() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			MdbookVersion: DefaultMdbookVersion,
		},
		Backlinks: BacklinksConfig{
			Heading:       backlinks.DefaultHeading,
			OnEscape:      string(backlinks.EscapeFail),
			OnRenderError: string(backlinks.RenderSkip),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
