package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/ledgersync/internal/checkpoint"
	"github.com/cleared-dev/ledgersync/internal/ledger"
	"github.com/cleared-dev/ledgersync/internal/provider"
	"github.com/cleared-dev/ledgersync/internal/registry"
	"github.com/cleared-dev/ledgersync/internal/scheduler"
	"github.com/cleared-dev/ledgersync/internal/syncer"
)

// FileName is the config file written by init.
const FileName = "ledgersync.yaml"

// EpochLayout is the date format of provider.epoch.
const EpochLayout = "2006-01-02"

// Config represents the top-level ledgersync.yaml configuration.
type Config struct {
	Ledger      LedgerConfig      `yaml:"ledger"`
	Provider    ProviderConfig    `yaml:"provider"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint"`
	Registry    RegistryConfig    `yaml:"registry"`
	Log         LogConfig         `yaml:"log"`
	SyncLog     string            `yaml:"sync_log,omitempty"`
	ImportDir   string            `yaml:"import_dir,omitempty"`
	Schedule    string            `yaml:"schedule,omitempty"`
	Listen      string            `yaml:"listen,omitempty"`
	Tenants     []Tenant          `yaml:"tenants,omitempty"`
}

// LedgerConfig locates the ledger service.
type LedgerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProviderConfig locates the statement provider.
type ProviderConfig struct {
	URL     string        `yaml:"url"`
	Backoff time.Duration `yaml:"backoff"`
	Epoch   string        `yaml:"epoch"` // "YYYY-MM-DD"
	Timeout time.Duration `yaml:"timeout"`
}

// ConcurrencyConfig bounds the in-flight ledger requests per batch.
type ConcurrencyConfig struct {
	Accounts     int `yaml:"accounts"`
	Transactions int `yaml:"transactions"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	RedisPrefix   string `yaml:"redis_prefix,omitempty"`
}

// RegistryConfig selects where tenants and tokens registered over HTTP are
// kept. The redis backend connects with the checkpoint redis settings.
type RegistryConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path,omitempty"`
	RedisPrefix string `yaml:"redis_prefix,omitempty"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Tenant is one configured sync pass.
type Tenant struct {
	Name    string `yaml:"name"`
	Account string `yaml:"account,omitempty"`
	Token   string `yaml:"token"`
	Wait    bool   `yaml:"wait"`
}

// Load reads a ledgersync.yaml file from disk, loads a .env file next to it
// if present and applies LEDGERSYNC_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// resolvePaths makes relative file locations relative to the config file.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Checkpoint.Path, &c.Registry.Path, &c.SyncLog, &c.ImportDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			URL:     "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			URL:     "https://fioapi.fio.cz/ib_api/rest",
			Backoff: provider.DefaultBackoff,
			Epoch:   provider.DefaultEpoch.Format(EpochLayout),
			Timeout: provider.DefaultTimeout,
		},
		Concurrency: ConcurrencyConfig{
			Accounts:     8,
			Transactions: 4,
		},
		Checkpoint: CheckpointConfig{
			Backend: checkpoint.BackendFile,
			Path:    "checkpoints.json",
		},
		Registry: RegistryConfig{
			Backend: registry.BackendFile,
			Path:    "registry.json",
		},
		Log: LogConfig{
			Level: "info",
		},
		SyncLog:   "sync-log.csv",
		ImportDir: "imports",
		Schedule:  "@every 5m",
		Listen:    ":8090",
	}
}

// ApplyEnv overrides fields from LEDGERSYNC_* environment variables.
func (c *Config) ApplyEnv() error {
	setString("LEDGERSYNC_LEDGER_URL", &c.Ledger.URL)
	setString("LEDGERSYNC_PROVIDER_URL", &c.Provider.URL)
	setString("LEDGERSYNC_PROVIDER_EPOCH", &c.Provider.Epoch)
	setString("LEDGERSYNC_CHECKPOINT_BACKEND", &c.Checkpoint.Backend)
	setString("LEDGERSYNC_CHECKPOINT_PATH", &c.Checkpoint.Path)
	setString("LEDGERSYNC_REDIS_ADDR", &c.Checkpoint.RedisAddr)
	setString("LEDGERSYNC_REDIS_PASSWORD", &c.Checkpoint.RedisPassword)
	setString("LEDGERSYNC_REDIS_PREFIX", &c.Checkpoint.RedisPrefix)
	setString("LEDGERSYNC_REGISTRY_BACKEND", &c.Registry.Backend)
	setString("LEDGERSYNC_REGISTRY_PATH", &c.Registry.Path)
	setString("LEDGERSYNC_LOG_LEVEL", &c.Log.Level)
	setString("LEDGERSYNC_SYNC_LOG", &c.SyncLog)
	setString("LEDGERSYNC_IMPORT_DIR", &c.ImportDir)
	setString("LEDGERSYNC_SCHEDULE", &c.Schedule)
	setString("LEDGERSYNC_LISTEN", &c.Listen)

	for key, dst := range map[string]*int{
		"LEDGERSYNC_ACCOUNTS_CONCURRENCY":     &c.Concurrency.Accounts,
		"LEDGERSYNC_TRANSACTIONS_CONCURRENCY": &c.Concurrency.Transactions,
		"LEDGERSYNC_REDIS_DB":                 &c.Checkpoint.RedisDB,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*time.Duration{
		"LEDGERSYNC_LEDGER_TIMEOUT":   &c.Ledger.Timeout,
		"LEDGERSYNC_PROVIDER_BACKOFF": &c.Provider.Backoff,
		"LEDGERSYNC_PROVIDER_TIMEOUT": &c.Provider.Timeout,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	if v := os.Getenv("LEDGERSYNC_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing LEDGERSYNC_LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = b
	}
	return nil
}

// Validate checks that the values needed to run a pass are present.
func (c *Config) Validate() error {
	var errs []error
	if c.Ledger.URL == "" {
		errs = append(errs, errors.New("ledger.url is required"))
	}
	if c.Provider.URL == "" {
		errs = append(errs, errors.New("provider.url is required"))
	}
	if _, err := c.epoch(); err != nil {
		errs = append(errs, err)
	}
	if c.Concurrency.Accounts <= 0 || c.Concurrency.Transactions <= 0 {
		errs = append(errs, errors.New("concurrency values must be positive"))
	}
	if c.Schedule != "" {
		if err := scheduler.ValidateSchedule(c.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("schedule: %w", err))
		}
	}
	for i, t := range c.Tenants {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("tenants[%d]: name is required", i))
		}
		if t.Token == "" {
			errs = append(errs, fmt.Errorf("tenants[%d]: token is required", i))
		}
	}
	return errors.Join(errs...)
}

// LedgerClientConfig returns the ledger client settings.
func (c *Config) LedgerClientConfig() ledger.Config {
	return ledger.Config{BaseURL: c.Ledger.URL, Timeout: c.Ledger.Timeout}
}

// ProviderClientConfig returns the provider client settings.
func (c *Config) ProviderClientConfig() (provider.Config, error) {
	epoch, err := c.epoch()
	if err != nil {
		return provider.Config{}, err
	}
	return provider.Config{
		BaseURL: c.Provider.URL,
		Backoff: c.Provider.Backoff,
		Epoch:   epoch,
		Timeout: c.Provider.Timeout,
	}, nil
}

// CheckpointOptions returns the checkpoint store selection.
func (c *Config) CheckpointOptions() checkpoint.Options {
	return checkpoint.Options{
		Backend:       c.Checkpoint.Backend,
		Path:          c.Checkpoint.Path,
		RedisAddr:     c.Checkpoint.RedisAddr,
		RedisPassword: c.Checkpoint.RedisPassword,
		RedisDB:       c.Checkpoint.RedisDB,
		RedisPrefix:   c.Checkpoint.RedisPrefix,
	}
}

// RegistryOptions returns the registry store selection.
func (c *Config) RegistryOptions() registry.Options {
	return registry.Options{
		Backend:       c.Registry.Backend,
		Path:          c.Registry.Path,
		RedisAddr:     c.Checkpoint.RedisAddr,
		RedisPassword: c.Checkpoint.RedisPassword,
		RedisDB:       c.Checkpoint.RedisDB,
		RedisPrefix:   c.Registry.RedisPrefix,
	}
}

// SyncConfig returns the driver settings.
func (c *Config) SyncConfig() syncer.Config {
	return syncer.Config{
		AccountsConcurrency:     c.Concurrency.Accounts,
		TransactionsConcurrency: c.Concurrency.Transactions,
	}
}

// Passes returns one pass per configured tenant.
func (c *Config) Passes() []syncer.Pass {
	passes := make([]syncer.Pass, 0, len(c.Tenants))
	for _, t := range c.Tenants {
		passes = append(passes, syncer.Pass{
			Tenant:        t.Name,
			AccountNumber: t.Account,
			Token:         t.Token,
			Wait:          t.Wait,
		})
	}
	return passes
}

func (c *Config) epoch() (time.Time, error) {
	if c.Provider.Epoch == "" {
		return provider.DefaultEpoch, nil
	}
	t, err := time.Parse(EpochLayout, c.Provider.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("provider.epoch: %w", err)
	}
	return t, nil
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = d
	return nil
}
