package backup

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"tenant-vault/internal/errors"
)

// GCSStorageProvider implements StorageProvider on Google Cloud Storage
type GCSStorageProvider struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// NewGCSStorageProvider creates a GCS provider. Without a credentials path
// the client falls back to ambient credentials (environment or metadata server).
func NewGCSStorageProvider(ctx context.Context, config *GCSConfig) (*GCSStorageProvider, error) {
	if config.Bucket == "" {
		return nil, errors.NewConfigurationError("GCS bucket is required", nil)
	}

	var (
		client *storage.Client
		err    error
	)
	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to create GCS client", err)
	}

	return &GCSStorageProvider{
		client:     client,
		bucketName: config.Bucket,
		prefix:     config.Prefix,
	}, nil
}

// Put uploads an object
func (gcsp *GCSStorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	writer := gcsp.object(path).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return errors.NewStorageError("failed to write object to GCS", err)
	}
	if err := writer.Close(); err != nil {
		return errors.NewStorageError("failed to upload object to GCS", err)
	}
	return nil
}

// Get downloads an object
func (gcsp *GCSStorageProvider) Get(ctx context.Context, path string) ([]byte, error) {
	reader, err := gcsp.object(path).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, errors.NewNotFound("object "+path+" not found", err)
		}
		return nil, errors.NewStorageError("failed to open object in GCS", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewStorageError("failed to read object from GCS", err)
	}
	return data, nil
}

// Delete removes an object
func (gcsp *GCSStorageProvider) Delete(ctx context.Context, path string) error {
	if err := gcsp.object(path).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return errors.NewNotFound("object "+path+" not found", err)
		}
		return errors.NewStorageError("failed to delete object from GCS", err)
	}
	return nil
}

// List returns the object keys under a prefix
func (gcsp *GCSStorageProvider) List(ctx context.Context, prefix string) ([]string, error) {
	it := gcsp.client.Bucket(gcsp.bucketName).Objects(ctx, &storage.Query{
		Prefix: gcsp.prefix + prefix,
	})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.NewStorageError("failed to list objects in GCS", err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, gcsp.prefix))
	}
	return keys, nil
}

func (gcsp *GCSStorageProvider) object(path string) *storage.ObjectHandle {
	return gcsp.client.Bucket(gcsp.bucketName).Object(gcsp.prefix + path)
}
