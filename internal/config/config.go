// Package config loads engine configuration from YAML files and
// TENANT_VAULT_* environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tenant-vault/internal/backup"
	"tenant-vault/internal/errors"
	"tenant-vault/internal/logging"
	"tenant-vault/internal/store"
)

// DatabaseConfig configures the relational store connection
type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

// CompressionConfig selects the backup compression algorithm
type CompressionConfig struct {
	Algorithm string `mapstructure:"algorithm"`
}

// EncryptionConfig configures optional at-rest encryption
type EncryptionConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Passphrase string `mapstructure:"passphrase"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ExportConfig tunes the tenant exporter
type ExportConfig struct {
	FanOut   int `mapstructure:"fan_out"`
	PageSize int `mapstructure:"page_size"`
}

// RestoreConfig tunes the restore engine
type RestoreConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// Config is the full engine configuration
type Config struct {
	Database    DatabaseConfig       `mapstructure:"database"`
	Storage     backup.StorageConfig `mapstructure:"storage"`
	Compression CompressionConfig    `mapstructure:"compression"`
	Encryption  EncryptionConfig     `mapstructure:"encryption"`
	Server      ServerConfig         `mapstructure:"server"`
	Logging     LoggingConfig        `mapstructure:"logging"`
	Export      ExportConfig         `mapstructure:"export"`
	Restore     RestoreConfig        `mapstructure:"restore"`
	// CatalogFile optionally overrides the built-in table catalog.
	CatalogFile string `mapstructure:"catalog_file"`
}

// Load reads configuration from an explicit file path, or from
// tenant-vault.yaml in the usual locations when path is empty. A missing
// file is not an error: defaults plus environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tenant-vault")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tenant-vault")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("TENANT_VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("failed to read configuration file %s", v.ConfigFileUsed()), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigurationError("failed to parse configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.base_path", "./backups")

	v.SetDefault("compression.algorithm", "none")
	v.SetDefault("encryption.enabled", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("logging.level", "normal")
	v.SetDefault("logging.format", "text")

	v.SetDefault("export.fan_out", 5)
	v.SetDefault("export.page_size", 1000)
	v.SetDefault("restore.batch_size", 100)
}

// Validate checks cross-field constraints that viper cannot express
func (c *Config) Validate() error {
	if !backup.IsValidCompressionType(c.Compression.Algorithm) {
		return errors.NewConfigurationError(
			fmt.Sprintf("unknown compression algorithm %q", c.Compression.Algorithm), nil)
	}
	if c.Encryption.Enabled && c.Encryption.Passphrase == "" {
		return errors.NewConfigurationError("encryption is enabled but no passphrase is set", nil)
	}
	switch c.Storage.Provider {
	case backup.StorageProviderLocal, backup.StorageProviderS3,
		backup.StorageProviderGCS, backup.StorageProviderAzure, "":
	default:
		return errors.NewConfigurationError(
			fmt.Sprintf("unknown storage provider %q", c.Storage.Provider), nil)
	}
	if c.Export.FanOut < 0 || c.Export.PageSize < 0 || c.Restore.BatchSize < 0 ||
		c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.NewConfigurationError("tuning values must not be negative", nil)
	}
	durations := []struct {
		key   string
		value string
	}{
		{"database.conn_max_lifetime", c.Database.ConnMaxLifetime},
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return errors.NewConfigurationError(
				fmt.Sprintf("invalid duration %q for %s", d.value, d.key), err)
		}
	}
	return nil
}

// PoolConfigFor translates the database tuning into the store's pool
// settings. Validate has already checked the lifetime string.
func (c *Config) PoolConfigFor() store.PoolConfig {
	lifetime, _ := time.ParseDuration(c.Database.ConnMaxLifetime)
	return store.PoolConfig{
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: lifetime,
	}
}

// LoggingConfigFor translates the logging section into the logger's config
func (c *Config) LoggingConfigFor() logging.Config {
	return logging.Config{
		Level:   logging.LogLevel(c.Logging.Level),
		Format:  c.Logging.Format,
		LogFile: c.Logging.File,
	}
}

// EncryptionConfigFor translates the encryption section for the backup layer
func (c *Config) EncryptionConfigFor() backup.EncryptionConfig {
	return backup.EncryptionConfig{
		Enabled:    c.Encryption.Enabled,
		Passphrase: c.Encryption.Passphrase,
	}
}
