package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/casemap/internal/models"
	"github.com/starford/casemap/internal/timeline"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Editor  EditorConfig      `yaml:"editor"`
	Persist PersistenceConfig `yaml:"persistence"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Persist.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.CORSOrigins, validation.Each(validation.Required)),
	)
}

// VaultConfig holds the data directory with maps/ and cases/.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
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

// EditorConfig holds the timeline and canvas geometry of editor sessions.
type EditorConfig struct {
	TimelineStart int     `yaml:"timeline_start"`
	TimelineEnd   int     `yaml:"timeline_end"`
	CanvasWidth   float64 `yaml:"canvas_width"`
	LaneX         float64 `yaml:"lane_x"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.TimelineStart, validation.Required, validation.Min(models.MinYear), validation.Max(models.MaxYear)),
		validation.Field(&c.TimelineEnd, validation.Required, validation.Min(c.TimelineStart),
			validation.Max(c.TimelineStart+timeline.MaxSpan), validation.Max(models.MaxYear)),
		validation.Field(&c.CanvasWidth, validation.Required, validation.Min(200.0)),
		validation.Field(&c.LaneX, validation.Min(0.0)),
	); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	if c.LaneX > c.CanvasWidth {
		return errors.New("editor: lane_x lies outside the canvas")
	}
	return nil
}

// Persistence modes.
const (
	PersistModeFireAndForget = "fire_and_forget"
	PersistModeCoalesce      = "coalesce"
)

// PersistenceConfig tells editor sessions where maps are saved.
//
// Endpoint is the mind map collection URL, e.g.
// http://localhost:8080/api/mindmaps. Mode is one of:
//   - "fire_and_forget" (default): every save is sent at once.
//   - "coalesce": one save in flight per case, later ones collapsed.
type PersistenceConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Mode        string        `yaml:"mode"`
	Token       string        `yaml:"token"`
	SaveTimeout time.Duration `yaml:"save_timeout"`
}

// Validate validates the persistence configuration.
func (c *PersistenceConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = PersistModeFireAndForget
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required, is.URL),
		validation.Field(&c.Mode, validation.In(PersistModeFireAndForget, PersistModeCoalesce)),
		validation.Field(&c.SaveTimeout, validation.Required, validation.Min(100*time.Millisecond)),
	); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./data",
		},
		SQLite: SQLiteConfig{
			Path: "./casemap.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Editor: EditorConfig{
			TimelineStart: 1985,
			TimelineEnd:   1990,
			CanvasWidth:   800,
			LaneX:         250,
		},
		Persist: PersistenceConfig{
			Endpoint:    "http://localhost:8080/api/mindmaps",
			Mode:        PersistModeFireAndForget,
			SaveTimeout: 10 * time.Second,
		},
	}
}
