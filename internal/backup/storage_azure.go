package backup

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"tenant-vault/internal/errors"
)

// AzureStorageProvider implements StorageProvider on Azure Blob Storage
type AzureStorageProvider struct {
	serviceURL    azblob.ServiceURL
	containerName string
	prefix        string
}

// NewAzureStorageProvider creates an Azure provider from shared-key credentials
func NewAzureStorageProvider(config *AzureConfig) (*AzureStorageProvider, error) {
	if config.AccountName == "" || config.AccountKey == "" || config.ContainerName == "" {
		return nil, errors.NewConfigurationError(
			"Azure account name, account key, and container name are required", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, errors.NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, errors.NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureStorageProvider{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: config.ContainerName,
		prefix:        config.Prefix,
	}, nil
}

// Put uploads a block blob
func (azp *AzureStorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	blobURL := azp.blockBlobURL(path)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: contentType,
		},
	})
	if err != nil {
		return errors.NewStorageError("failed to upload blob to Azure", err)
	}
	return nil
}

// Get downloads a blob
func (azp *AzureStorageProvider) Get(ctx context.Context, path string) ([]byte, error) {
	blobURL := azp.blockBlobURL(path)
	resp, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if storageErr, ok := err.(azblob.StorageError); ok &&
			storageErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return nil, errors.NewNotFound("object "+path+" not found", err)
		}
		return nil, errors.NewStorageError("failed to download blob from Azure", err)
	}

	var buf bytes.Buffer
	reader := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer reader.Close()
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, errors.NewStorageError("failed to read blob body", err)
	}
	return buf.Bytes(), nil
}

// Delete removes a blob
func (azp *AzureStorageProvider) Delete(ctx context.Context, path string) error {
	blobURL := azp.blockBlobURL(path)
	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		return errors.NewStorageError("failed to delete blob from Azure", err)
	}
	return nil
}

// List returns the blob keys under a prefix
func (azp *AzureStorageProvider) List(ctx context.Context, prefix string) ([]string, error) {
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	var keys []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: azp.prefix + prefix,
		})
		if err != nil {
			return nil, errors.NewStorageError("failed to list blobs in Azure", err)
		}
		for _, item := range resp.Segment.BlobItems {
			keys = append(keys, strings.TrimPrefix(item.Name, azp.prefix))
		}
		marker = resp.NextMarker
	}
	return keys, nil
}

func (azp *AzureStorageProvider) blockBlobURL(path string) azblob.BlockBlobURL {
	return azp.serviceURL.NewContainerURL(azp.containerName).NewBlockBlobURL(azp.prefix + path)
}
