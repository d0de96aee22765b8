// Package config loads the attestor service configuration from YAML and
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the attestor service configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Namecoin       NamecoinConfig       `mapstructure:"namecoin"`
	Identity       IdentityConfig       `mapstructure:"identity"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Shutdown       ShutdownConfig       `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// NamecoinConfig contains Namecoin Core RPC settings.
type NamecoinConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RPCUser        string        `mapstructure:"rpc_user"`
	RPCPassword    string        `mapstructure:"rpc_password"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Namespace is the name prefix used for credential names.
	Namespace string `mapstructure:"namespace"`
	// FirstUpdateDepth is the confirmation depth a name_new needs before
	// name_firstupdate becomes valid. Protocol minimum is 12.
	FirstUpdateDepth int `mapstructure:"first_update_depth"`
	// UnlockDuration bounds how long a walletpassphrase unlock stays open.
	UnlockDuration time.Duration `mapstructure:"unlock_duration"`
	// MinBalance triggers a low-balance warning before issuing spend
	// operations. Empty disables the check.
	MinBalance string `mapstructure:"min_balance"`
	// WalletPassphrase is used for headless deployments where no terminal
	// is attached. Leave empty to prompt interactively.
	WalletPassphrase string `mapstructure:"wallet_passphrase"`
}

// IdentityConfig contains settings for the wallet identity API that resolves
// nym source addresses.
type IdentityConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	BearerToken    string        `mapstructure:"bearer_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig contains settings for API authentication. An empty secret
// disables bearer auth on mutating endpoints.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// ReconciliationConfig contains settings for the periodic name reconciliation
type ReconciliationConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8085)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "attestor")

	// Namecoin defaults
	viper.SetDefault("namecoin.request_timeout", "30s")
	viper.SetDefault("namecoin.namespace", "ot")
	viper.SetDefault("namecoin.first_update_depth", 12)
	viper.SetDefault("namecoin.unlock_duration", "2m")

	// Identity defaults
	viper.SetDefault("identity.request_timeout", "10s")

	// Reconciliation defaults
	viper.SetDefault("reconciliation.interval", "1m")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Namecoin.RPCURL == "" {
		return fmt.Errorf("namecoin.rpc_url is required")
	}
	if config.Identity.BaseURL == "" {
		return fmt.Errorf("identity.base_url is required")
	}
	if config.Namecoin.FirstUpdateDepth < 12 {
		return fmt.Errorf("namecoin.first_update_depth must be at least 12")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
