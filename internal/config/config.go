// Package config provides configuration loading and management for poolsync.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/poolsync/internal/telemetry"
)

const (
	// EnvPrefix is the prefix for environment variables read by poolsync
	EnvPrefix = "POOLSYNC"

	// PasswordEnvVar is the environment variable consulted when no password file is set
	PasswordEnvVar = EnvPrefix + "_PASSWORD"
)

// Defaults applied when the corresponding field is left empty
const (
	DefaultSignInURL        = "https://identitytoolkit.googleapis.com/v1/accounts"
	DefaultTokenURL         = "https://securetoken.googleapis.com/v1/token"
	DefaultCollection       = "pools"
	DefaultOperation        = "WRP"
	DefaultCommandSource    = "web"
	DefaultPollInterval     = 60 * time.Second
	DefaultHealthInterval   = 300 * time.Second
	DefaultRefreshLookahead = 5 * time.Minute
	DefaultCommandTimeout   = 20 * time.Second
	DefaultBackoffInitial   = 10 * time.Second
	DefaultBackoffMax       = 600 * time.Second
	DefaultQueueSize        = 64
	DefaultAddress          = ":8080"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Identity  IdentityConfig    `yaml:"identity"`
	Document  DocumentConfig    `yaml:"document"`
	Command   CommandConfig     `yaml:"command"`
	Sync      *SyncConfig       `yaml:"sync,omitempty"`
	Server    *ServerConfig     `yaml:"server,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// IdentityConfig defines how poolsync signs in to the identity service
type IdentityConfig struct {
	// APIKey is the identity service API key appended as ?key= to every call
	APIKey string `yaml:"apiKey"`

	// SignInURL is the accounts base URL; ":signInWithPassword" is appended
	SignInURL string `yaml:"signInURL,omitempty"`

	// TokenURL is the refresh-token exchange endpoint
	TokenURL string `yaml:"tokenURL,omitempty"`

	// Email is the account user name
	Email string `yaml:"email"`

	// PasswordFile is the path to a file containing the account password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`
}

// DocumentConfig addresses the remote device document
type DocumentConfig struct {
	// StoreURL is the documents root of the remote store REST API
	// Example: "https://firestore.googleapis.com/v1/projects/hayward-europe/databases/(default)/documents"
	StoreURL string `yaml:"storeURL"`

	// ListenURL is the websocket endpoint used for push updates
	ListenURL string `yaml:"listenURL"`

	// Collection holding the device documents, defaults to "pools"
	Collection string `yaml:"collection,omitempty"`

	// DocumentID is the device document to mirror. May be empty until a device
	// has been selected; the poller skips its ticks in that case.
	DocumentID string `yaml:"documentId,omitempty"`
}

// CommandConfig defines the remote command endpoint
type CommandConfig struct {
	// Endpoint is the base URL; "/sendPoolCommand" is appended
	Endpoint string `yaml:"endpoint"`

	// Operation is the command operation code, defaults to "WRP"
	Operation string `yaml:"operation,omitempty"`

	// Source identifies the client kind to the endpoint, defaults to "web"
	Source string `yaml:"source,omitempty"`
}

// SyncConfig holds the timing knobs of the coordinator. All values are Go
// duration strings (e.g. "60s", "5m").
type SyncConfig struct {
	PollInterval     string `yaml:"pollInterval,omitempty"`
	HealthInterval   string `yaml:"healthInterval,omitempty"`
	RefreshLookahead string `yaml:"refreshLookahead,omitempty"`
	CommandTimeout   string `yaml:"commandTimeout,omitempty"`
	BackoffInitial   string `yaml:"backoffInitial,omitempty"`
	BackoffMax       string `yaml:"backoffMax,omitempty"`
	QueueSize        int    `yaml:"queueSize,omitempty"`
}

// ServerConfig defines the read-model HTTP server
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetPassword returns the account password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from POOLSYNC_PASSWORD environment variable
func (i *IdentityConfig) GetPassword() (string, error) {
	if i.PasswordFile != "" {
		cleanPath := filepath.Clean(i.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", i.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf("no password configured: set passwordFile or %s environment variable", PasswordEnvVar)
}

// GetSignInURL returns the sign-in base URL, using the default if not specified
func (i *IdentityConfig) GetSignInURL() string {
	if i.SignInURL == "" {
		return DefaultSignInURL
	}
	return strings.TrimSuffix(i.SignInURL, "/")
}

// GetTokenURL returns the token URL, using the default if not specified
func (i *IdentityConfig) GetTokenURL() string {
	if i.TokenURL == "" {
		return DefaultTokenURL
	}
	return i.TokenURL
}

// GetCollection returns the document collection, using "pools" if not specified
func (d *DocumentConfig) GetCollection() string {
	if d.Collection == "" {
		return DefaultCollection
	}
	return d.Collection
}

// GetOperation returns the command operation code
func (c *CommandConfig) GetOperation() string {
	if c.Operation == "" {
		return DefaultOperation
	}
	return c.Operation
}

// GetSource returns the command source identifier
func (c *CommandConfig) GetSource() string {
	if c.Source == "" {
		return DefaultCommandSource
	}
	return c.Source
}

// GetSync returns the sync configuration, never nil
func (c *Config) GetSync() *SyncConfig {
	if c.Sync == nil {
		return &SyncConfig{}
	}
	return c.Sync
}

// GetAddress returns the HTTP listen address
func (c *Config) GetAddress() string {
	if c.Server == nil || c.Server.Address == "" {
		return DefaultAddress
	}
	return c.Server.Address
}

// GetPollInterval returns the reconciliation poll interval
func (s *SyncConfig) GetPollInterval() time.Duration {
	return durationOrDefault(s.PollInterval, DefaultPollInterval)
}

// GetHealthInterval returns the health probe interval
func (s *SyncConfig) GetHealthInterval() time.Duration {
	return durationOrDefault(s.HealthInterval, DefaultHealthInterval)
}

// GetRefreshLookahead returns how long before expiry a credential is refreshed
func (s *SyncConfig) GetRefreshLookahead() time.Duration {
	return durationOrDefault(s.RefreshLookahead, DefaultRefreshLookahead)
}

// GetCommandTimeout returns how long an optimistic value is held unconfirmed
func (s *SyncConfig) GetCommandTimeout() time.Duration {
	return durationOrDefault(s.CommandTimeout, DefaultCommandTimeout)
}

// GetBackoffInitial returns the first retry delay of the refresh loop
func (s *SyncConfig) GetBackoffInitial() time.Duration {
	return durationOrDefault(s.BackoffInitial, DefaultBackoffInitial)
}

// GetBackoffMax returns the retry delay cap of the refresh loop
func (s *SyncConfig) GetBackoffMax() time.Duration {
	return durationOrDefault(s.BackoffMax, DefaultBackoffMax)
}

// GetQueueSize returns the writer task queue capacity
func (s *SyncConfig) GetQueueSize() int {
	if s.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return s.QueueSize
}

// durationOrDefault parses value; validate() has already rejected malformed values
func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateIdentity(&c.Identity); err != nil {
		return err
	}
	if err := validateDocument(&c.Document); err != nil {
		return err
	}
	if err := validateCommand(&c.Command); err != nil {
		return err
	}
	if err := validateSync(c.Sync); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateIdentity(identity *IdentityConfig) error {
	if identity.APIKey == "" {
		return fmt.Errorf("identity.apiKey is required")
	}
	if identity.Email == "" {
		return fmt.Errorf("identity.email is required")
	}
	if err := validateURL("identity.signInURL", identity.SignInURL, true); err != nil {
		return err
	}
	return validateURL("identity.tokenURL", identity.TokenURL, true)
}

func validateDocument(doc *DocumentConfig) error {
	if doc.StoreURL == "" {
		return fmt.Errorf("document.storeURL is required")
	}
	if err := validateURL("document.storeURL", doc.StoreURL, false); err != nil {
		return err
	}
	if doc.ListenURL == "" {
		return fmt.Errorf("document.listenURL is required")
	}
	u, err := url.Parse(doc.ListenURL)
	if err != nil {
		return fmt.Errorf("document.listenURL is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("document.listenURL must use ws or wss, got %q", u.Scheme)
	}
	if strings.Contains(doc.DocumentID, "/") {
		return fmt.Errorf("document.documentId must not contain '/'")
	}
	return nil
}

func validateCommand(cmd *CommandConfig) error {
	if cmd.Endpoint == "" {
		return fmt.Errorf("command.endpoint is required")
	}
	return validateURL("command.endpoint", cmd.Endpoint, false)
}

func validateSync(s *SyncConfig) error {
	if s == nil {
		return nil
	}

	durations := []struct {
		field string
		value string
	}{
		{"sync.pollInterval", s.PollInterval},
		{"sync.healthInterval", s.HealthInterval},
		{"sync.refreshLookahead", s.RefreshLookahead},
		{"sync.commandTimeout", s.CommandTimeout},
		{"sync.backoffInitial", s.BackoffInitial},
		{"sync.backoffMax", s.BackoffMax},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '30s', '5m'): %w", d.field, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive", d.field)
		}
	}

	if s.GetBackoffMax() < s.GetBackoffInitial() {
		return fmt.Errorf("sync.backoffMax must not be smaller than sync.backoffInitial")
	}
	if s.QueueSize < 0 {
		return fmt.Errorf("sync.queueSize must not be negative")
	}
	return nil
}

func validateURL(field, value string, optional bool) error {
	if value == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, u.Scheme)
	}
	return nil
}
