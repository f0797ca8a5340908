package backup

import (
	"context"
	"os"

	"tenant-vault/internal/errors"
)

// StorageProvider abstracts blob storage for backup objects. Paths are
// slash-separated keys relative to the provider's root.
type StorageProvider interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageProviderType identifies a storage backend
type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "local"
	StorageProviderS3    StorageProviderType = "s3"
	StorageProviderGCS   StorageProviderType = "gcs"
	StorageProviderAzure StorageProviderType = "azure"
)

// StorageConfig selects and configures a storage backend
type StorageConfig struct {
	Provider StorageProviderType `mapstructure:"provider"`
	Local    *LocalConfig        `mapstructure:"local"`
	S3       *S3Config           `mapstructure:"s3"`
	GCS      *GCSConfig          `mapstructure:"gcs"`
	Azure    *AzureConfig        `mapstructure:"azure"`
}

// LocalConfig configures filesystem storage
type LocalConfig struct {
	BasePath    string      `mapstructure:"base_path"`
	Permissions os.FileMode `mapstructure:"permissions"`
}

// S3Config configures Amazon S3 storage
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// GCSConfig configures Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path"`
	Prefix          string `mapstructure:"prefix"`
}

// AzureConfig configures Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container_name"`
	Prefix        string `mapstructure:"prefix"`
}

// NewStorageProvider creates the provider selected by config.
func NewStorageProvider(ctx context.Context, config StorageConfig) (StorageProvider, error) {
	switch config.Provider {
	case StorageProviderLocal, "":
		if config.Local == nil {
			return nil, errors.NewConfigurationError("local storage configuration is required", nil)
		}
		return NewLocalStorageProvider(config.Local)
	case StorageProviderS3:
		if config.S3 == nil {
			return nil, errors.NewConfigurationError("S3 storage configuration is required", nil)
		}
		return NewS3StorageProvider(config.S3)
	case StorageProviderGCS:
		if config.GCS == nil {
			return nil, errors.NewConfigurationError("GCS storage configuration is required", nil)
		}
		return NewGCSStorageProvider(ctx, config.GCS)
	case StorageProviderAzure:
		if config.Azure == nil {
			return nil, errors.NewConfigurationError("Azure storage configuration is required", nil)
		}
		return NewAzureStorageProvider(config.Azure)
	default:
		return nil, errors.NewConfigurationError(
			"unknown storage provider: "+string(config.Provider), nil)
	}
}
