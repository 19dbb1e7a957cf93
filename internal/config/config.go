// Package config handles project discovery and configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the kstack settings read from the environment.
type Config struct {
	// DB is the SQLite catalog database. Empty means the catalog file is
	// loaded into memory instead.
	DB      string `env:"KSTACK_DB"`
	Catalog string `env:"KSTACK_CATALOG" envDefault:"catalog.yaml"`

	HelmBin        string        `env:"KSTACK_HELM_BIN" envDefault:"helm"`
	StagingContext string        `env:"KSTACK_STAGING_CONTEXT" envDefault:"staging"`
	ProdContext    string        `env:"KSTACK_PROD_CONTEXT" envDefault:"prod"`
	ProdNamespace  string        `env:"KSTACK_PROD_NAMESPACE" envDefault:"lolmeida"`
	DevDelay       time.Duration `env:"KSTACK_DEV_DELAY" envDefault:"2s"`
	StagingTimeout time.Duration `env:"KSTACK_STAGING_TIMEOUT" envDefault:"5m"`
	ProdTimeout    time.Duration `env:"KSTACK_PROD_TIMEOUT" envDefault:"10m"`
	SecretsFiles   []string      `env:"KSTACK_SECRETS_FILES" envSeparator:","`

	Port          int    `env:"KSTACK_PORT" envDefault:"8080"`
	APIToken      string `env:"KSTACK_API_TOKEN"`
	WebhookURL    string `env:"KSTACK_WEBHOOK_URL"`
	WebhookFormat string `env:"KSTACK_WEBHOOK_FORMAT" envDefault:"json"`
	StateDir      string `env:"KSTACK_STATE_DIR"`
	LogLevel      string `env:"KSTACK_LOG_LEVEL" envDefault:"info"`

	// Root is the project root directory (contains charts/).
	Root string
}

// FindRoot searches upward from dir to find the project root, identified
// by the presence of a charts/ directory.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, "charts")); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("project root not found (no charts/ directory)")
}

// Load reads the optional .env file of the project root, then the
// process environment. Variables already set in the environment win over
// .env entries.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return LoadFrom(wd)
}

// LoadFrom is Load starting the root search at dir. A missing project
// root is not an error; Root is then dir itself.
func LoadFrom(dir string) (*Config, error) {
	root, err := FindRoot(dir)
	if err != nil {
		root, err = filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", dir, err)
		}
	}

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Root = root
	cfg.resolvePaths()
	return &cfg, nil
}

// resolvePaths makes file settings relative to the project root.
func (c *Config) resolvePaths() {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Root, p)
	}
	c.DB = abs(c.DB)
	c.Catalog = abs(c.Catalog)
	for i, f := range c.SecretsFiles {
		c.SecretsFiles[i] = abs(f)
	}
	if c.StateDir == "" {
		c.StateDir = filepath.Join(c.Root, ".kstack")
	}
	c.StateDir = abs(c.StateDir)
}

// ChartsDir returns the path to the helm charts directory.
func (c *Config) ChartsDir() string {
	return filepath.Join(c.Root, "charts")
}

// ChartDir returns the chart directory of one stack.
func (c *Config) ChartDir(stack string) string {
	return filepath.Join(c.ChartsDir(), stack)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
