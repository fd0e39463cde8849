// ABOUTME: Configuration loading and parsing for archivist
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"crypto/subtle"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config represents the complete archivist configuration
type Config struct {
	Matrix   MatrixConfig   `yaml:"matrix"`
	Database DatabaseConfig `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Gates    GatesConfig    `yaml:"gates"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MatrixConfig holds the chat transport credentials
type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AdminConfig holds the credential pair for the admin challenge flow and
// the durable allow-list seed. Password may be given as a bcrypt hash
// (recommended) or as plaintext.
type AdminConfig struct {
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	AllowList []string `yaml:"allow_list"`
}

// GatesConfig holds membership-check tuning
type GatesConfig struct {
	CheckTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CheckTimeoutRaw string `yaml:"check_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Gates.CheckTimeoutRaw != "" {
		cfg.Gates.CheckTimeout, err = time.ParseDuration(cfg.Gates.CheckTimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing check_timeout %q: %w", cfg.Gates.CheckTimeoutRaw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present.
// Startup fails on missing transport credentials.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Admin.Username == "" {
		return fmt.Errorf("admin.username is required")
	}
	if c.Admin.Password == "" {
		return fmt.Errorf("admin.password is required")
	}

	return nil
}

// VerifyPassword checks a password attempt against the configured
// credential. Bcrypt hashes are recognized by their prefix; anything else
// is compared in constant time.
func (c *AdminConfig) VerifyPassword(attempt string) bool {
	if strings.HasPrefix(c.Password, "$2a$") ||
		strings.HasPrefix(c.Password, "$2b$") ||
		strings.HasPrefix(c.Password, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(attempt)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(c.Password), []byte(attempt)) == 1
}

// VerifyUsername checks a username attempt in constant time
func (c *AdminConfig) VerifyUsername(attempt string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Username), []byte(attempt)) == 1
}
