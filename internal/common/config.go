package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment  string          `toml:"environment" validate:"oneof=development production"` // controls SAS refresh buffer and mock signer availability
	Organization string          `toml:"organization" validate:"required"`                    // tenant all crawled records belong to
	Server       ServerConfig    `toml:"server"`
	Storage      StorageConfig   `toml:"storage"`
	Source       SourceConfig    `toml:"source"`
	Crawler      CrawlerConfig   `toml:"crawler"`
	Session      SessionConfig   `toml:"session"`
	Images       ImagesConfig    `toml:"images"`
	Logging      LoggingConfig   `toml:"logging"`
	Bootstrap    BootstrapConfig `toml:"bootstrap"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

// StorageConfig selects the relational backend for the mirror
type StorageConfig struct {
	Type     string         `toml:"type" validate:"oneof=sqlite postgres"` // "sqlite" for dev, "postgres" for production
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
}

type SQLiteConfig struct {
	Path string `toml:"path"` // Database file path (":memory:" supported for tests)
}

type PostgresConfig struct {
	DSN string `toml:"dsn"` // Full postgres DSN
}

// SourceConfig describes the remote listing UI being mirrored
type SourceConfig struct {
	BaseURL   string `toml:"base_url" validate:"required,url"` // Root of the remote system
	ListPath  string `toml:"list_path"`                        // Path of the canonical job list page
	LoginPath string `toml:"login_path"`                       // Path of the login form
}

// CrawlerConfig contains browser-driving and extraction timing configuration
type CrawlerConfig struct {
	UserAgent          string        `toml:"user_agent"`          // User agent for the automated browser
	Headless           bool          `toml:"headless"`            // Run Chrome headless
	NoSandbox          bool          `toml:"no_sandbox"`          // Disable Chrome sandbox (containers)
	NavigationTimeout  time.Duration `toml:"navigation_timeout"`  // Max time for a single navigation
	SynchronizeTimeout time.Duration `toml:"synchronize_timeout"` // Max time to wait for a list page to settle
	BadgeWait          time.Duration `toml:"badge_wait"`          // Bounded wait for tag badges to render per row
	BadgeWaitRetries   int           `toml:"badge_wait_retries"`  // Extra badge-wait rounds before accepting "no tags" (default 0)
	PageRetryBudget    int           `toml:"page_retry_budget"`   // Recovery attempts per page before skipping it
	NavigationDelay    time.Duration `toml:"navigation_delay"`    // Minimum spacing between navigations
	ErrorArtifactDir   string        `toml:"error_artifact_dir"`  // Directory for failed-record artifacts
	EnhancedExtraction bool          `toml:"enhanced_extraction"` // Enable best-effort contact/line-item/attachment extraction
	MaxPages           int           `toml:"max_pages"`           // Hard cap on pages walked per run (0 = no cap)
}

// SessionConfig contains authentication and session persistence configuration
type SessionConfig struct {
	CredentialsFile string `toml:"credentials_file"` // TOML file holding login credentials
	ArtifactPath    string `toml:"artifact_path"`    // Serialized browser session (cookies) location
	Username        string `toml:"username"`         // Operator-selected credential; empty = last used
}

// ImagesConfig contains SAS freshness configuration
type ImagesConfig struct {
	RefreshBufferProd time.Duration `toml:"refresh_buffer_prod"` // Treat as expired within this window of expiry (production)
	RefreshBufferDev  time.Duration `toml:"refresh_buffer_dev"`  // Looser buffer for development to avoid refresh loops
	SignedURLTTL      time.Duration `toml:"signed_url_ttl"`      // Validity window for regenerated URLs
	SweepSchedule     string        `toml:"sweep_schedule"`      // Cron schedule for the freshness sweep ("" = disabled)
	StorageAccount    string        `toml:"storage_account"`     // Blob storage account host used when re-signing
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// BootstrapConfig provisions the organization and its tag catalog on first run
type BootstrapConfig struct {
	Tags []BootstrapTag `toml:"tags"`
}

type BootstrapTag struct {
	Code  string `toml:"code" validate:"required"`
	Name  string `toml:"name" validate:"required"`
	Color string `toml:"color"`
}

// DefaultConfig returns the configuration defaults applied before any file
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "./data/ordermirror.db"},
		},
		Source: SourceConfig{
			ListPath:  "/jobs",
			LoginPath: "/login",
		},
		Crawler: CrawlerConfig{
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Headless:           true,
			NavigationTimeout:  45 * time.Second,
			SynchronizeTimeout: 15 * time.Second,
			BadgeWait:          3 * time.Second,
			BadgeWaitRetries:   0,
			PageRetryBudget:    3,
			NavigationDelay:    500 * time.Millisecond,
			ErrorArtifactDir:   "./data/errors",
			EnhancedExtraction: true,
		},
		Session: SessionConfig{
			CredentialsFile: "./auth/credentials.toml",
			ArtifactPath:    "./auth/session.json",
		},
		Images: ImagesConfig{
			RefreshBufferProd: 6 * time.Hour,
			RefreshBufferDev:  30 * time.Minute,
			SignedURLTTL:      7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from defaults, then each file in order
// (later files override earlier ones), then environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against its declared constraints
func Validate(config *Config) error {
	v := validator.New()
	if err := v.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errorsAs := func() bool {
			ve, ok := err.(validator.ValidationErrors)
			if ok {
				verrs = ve
			}
			return ok
		}(); errorsAs {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides maps ORDERMIRROR_* environment variables onto the config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ORDERMIRROR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("ORDERMIRROR_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("ORDERMIRROR_ENVIRONMENT"); v != "" {
		config.Environment = v
	}
	if v := os.Getenv("ORDERMIRROR_ORGANIZATION"); v != "" {
		config.Organization = v
	}
	if v := os.Getenv("ORDERMIRROR_STORAGE_TYPE"); v != "" {
		config.Storage.Type = v
	}
	if v := os.Getenv("ORDERMIRROR_POSTGRES_DSN"); v != "" {
		config.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("ORDERMIRROR_SOURCE_BASE_URL"); v != "" {
		config.Source.BaseURL = v
	}
	if v := os.Getenv("ORDERMIRROR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// IsProduction reports whether the production environment is configured
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// RefreshBuffer returns the SAS safety buffer for the active environment
func (c *Config) RefreshBuffer() time.Duration {
	if c.IsProduction() {
		return c.Images.RefreshBufferProd
	}
	return c.Images.RefreshBufferDev
}

// ListURL returns the canonical list page URL
func (c *Config) ListURL() string {
	return strings.TrimRight(c.Source.BaseURL, "/") + c.Source.ListPath
}

// LoginURL returns the login page URL
func (c *Config) LoginURL() string {
	return strings.TrimRight(c.Source.BaseURL, "/") + c.Source.LoginPath
}
