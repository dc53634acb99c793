package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/outline/internal/index"
	"github.com/starford/outline/internal/models"
	"github.com/starford/outline/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Graph  GraphConfig       `yaml:"graph"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Index  IndexConfig       `yaml:"index"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Index.Validate()
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

// GraphConfig locates the page store: a root directory holding one
// sub-directory of user pages and one of journal pages.
type GraphConfig struct {
	Root        string `yaml:"root"`
	PagesDir    string `yaml:"pages_dir"`
	JournalsDir string `yaml:"journals_dir"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	if c.PagesDir == "" {
		c.PagesDir = storage.DefaultLayout.PagesDir
	}
	if c.JournalsDir == "" {
		c.JournalsDir = storage.DefaultLayout.JournalsDir
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	); err != nil {
		return err
	}
	if filepath.Clean(c.PagesDir) == filepath.Clean(c.JournalsDir) {
		return fmt.Errorf("graph: pages_dir and journals_dir must differ")
	}
	return nil
}

// Layout returns the storage layout of the graph.
func (c *GraphConfig) Layout() storage.Layout {
	return storage.Layout{PagesDir: c.PagesDir, JournalsDir: c.JournalsDir}
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

// IndexConfig tunes the todo index.
//
// JournalNamespace is the namespace recorded on todos found in journal pages.
// "journal" labels them correctly; "user" keeps the legacy labelling where
// journal todos report the user namespace. Their page id is a journal id
// either way.
type IndexConfig struct {
	JournalNamespace string        `yaml:"journal_namespace"`
	Debounce         time.Duration `yaml:"debounce"`
	EventThrottle    time.Duration `yaml:"event_throttle"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if c.JournalNamespace == "" {
		c.JournalNamespace = models.JournalPage.String()
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.JournalNamespace, validation.In(models.JournalPage.String(), models.UserPage.String())),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// JournalSourceNamespace returns the parsed JournalNamespace.
func (c *IndexConfig) JournalSourceNamespace() models.PageNamespace {
	if ns, err := models.ParseNamespace(c.JournalNamespace); err == nil {
		return ns
	}
	return models.JournalPage
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
		Graph: GraphConfig{
			Root:        "./graph",
			PagesDir:    storage.DefaultLayout.PagesDir,
			JournalsDir: storage.DefaultLayout.JournalsDir,
		},
		SQLite: SQLiteConfig{
			Path: "./outline.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Index: IndexConfig{
			JournalNamespace: models.JournalPage.String(),
			Debounce:         index.DefaultDebounce,
			EventThrottle:    2 * time.Second,
		},
	}
}
