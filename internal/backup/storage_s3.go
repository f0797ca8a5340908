package backup

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"tenant-vault/internal/errors"
)

// S3StorageProvider implements StorageProvider on Amazon S3
type S3StorageProvider struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3StorageProvider creates an S3 provider from static credentials
func NewS3StorageProvider(config *S3Config) (*S3StorageProvider, error) {
	if config.Bucket == "" || config.Region == "" {
		return nil, errors.NewConfigurationError("S3 bucket and region are required", nil)
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"", // token
		),
	})
	if err != nil {
		return nil, errors.NewStorageError("failed to create AWS session", err)
	}

	return &S3StorageProvider{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: config.Prefix,
	}, nil
}

// Put uploads an object
func (s3p *S3StorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := s3p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3p.bucket),
		Key:         aws.String(s3p.key(path)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return errors.NewStorageError("failed to upload object to S3", err)
	}
	return nil
}

// Get downloads an object
func (s3p *S3StorageProvider) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := s3p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(s3p.key(path)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, errors.NewNotFound("object "+path+" not found", err)
		}
		return nil, errors.NewStorageError("failed to download object from S3", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.NewStorageError("failed to read object body", err)
	}
	return data, nil
}

// Delete removes an object
func (s3p *S3StorageProvider) Delete(ctx context.Context, path string) error {
	_, err := s3p.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(s3p.key(path)),
	})
	if err != nil {
		return errors.NewStorageError("failed to delete object from S3", err)
	}
	return nil
}

// List returns the object keys under a prefix
func (s3p *S3StorageProvider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s3p.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s3p.bucket),
		Prefix: aws.String(s3p.key(prefix)),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.StringValue(obj.Key), s3p.prefix))
		}
		return true
	})
	if err != nil {
		return nil, errors.NewStorageError("failed to list objects in S3", err)
	}
	return keys, nil
}

func (s3p *S3StorageProvider) key(path string) string {
	return s3p.prefix + path
}
