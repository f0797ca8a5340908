package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-vault/internal/backup"
	"tenant-vault/internal/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenant-vault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "an explicit path that does not exist must fail")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, backup.StorageProviderType("local"), cfg.Storage.Provider)
	assert.Equal(t, "none", cfg.Compression.Algorithm)
	assert.False(t, cfg.Encryption.Enabled)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Export.FanOut)
	assert.Equal(t, 1000, cfg.Export.PageSize)
	assert.Equal(t, 100, cfg.Restore.BatchSize)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: "vault:secret@tcp(db:3306)/platform?parseTime=true"
  max_open_conns: 20
storage:
  provider: s3
  s3:
    bucket: vault-backups
    region: eu-west-1
    access_key: AKIA0000
    secret_key: hunter2
compression:
  algorithm: zstd
encryption:
  enabled: true
  passphrase: vault-key
server:
  addr: ":9090"
logging:
  level: debug
  format: json
restore:
  batch_size: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "vault:secret@tcp(db:3306)/platform?parseTime=true", cfg.Database.DSN)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, backup.StorageProviderS3, cfg.Storage.Provider)
	require.NotNil(t, cfg.Storage.S3)
	assert.Equal(t, "vault-backups", cfg.Storage.S3.Bucket)
	assert.Equal(t, "zstd", cfg.Compression.Algorithm)
	assert.True(t, cfg.Encryption.Enabled)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 250, cfg.Restore.BatchSize)

	lc := cfg.LoggingConfigFor()
	assert.Equal(t, "json", lc.Format)

	ec := cfg.EncryptionConfigFor()
	assert.True(t, ec.Enabled)
	assert.Equal(t, "vault-key", ec.Passphrase)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("TENANT_VAULT_SERVER_ADDR", ":7001")
	t.Setenv("TENANT_VAULT_COMPRESSION_ALGORITHM", "lz4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Server.Addr)
	assert.Equal(t, "lz4", cfg.Compression.Algorithm)
}

func TestPoolConfigFor(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Database.MaxOpenConns = 25
	cfg.Database.MaxIdleConns = 8
	cfg.Database.ConnMaxLifetime = "90s"

	pool := cfg.PoolConfigFor()
	assert.Equal(t, 25, pool.MaxOpenConns)
	assert.Equal(t, 8, pool.MaxIdleConns)
	assert.Equal(t, 90*time.Second, pool.ConnMaxLifetime)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown compression algorithm",
			mutate:  func(c *Config) { c.Compression.Algorithm = "brotli" },
			wantErr: "compression",
		},
		{
			name:    "encryption without passphrase",
			mutate:  func(c *Config) { c.Encryption.Enabled = true },
			wantErr: "passphrase",
		},
		{
			name:    "unknown storage provider",
			mutate:  func(c *Config) { c.Storage.Provider = "ftp" },
			wantErr: "storage provider",
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.Restore.BatchSize = -1 },
			wantErr: "negative",
		},
		{
			name:    "negative max open connections",
			mutate:  func(c *Config) { c.Database.MaxOpenConns = -1 },
			wantErr: "negative",
		},
		{
			name:    "malformed connection lifetime",
			mutate:  func(c *Config) { c.Database.ConnMaxLifetime = "5minutes" },
			wantErr: "database.conn_max_lifetime",
		},
		{
			name:    "malformed server write timeout",
			mutate:  func(c *Config) { c.Server.WriteTimeout = "ten" },
			wantErr: "server.write_timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeConfiguration, errors.TypeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
