// Package storage uploads build sources to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
	"github.com/docker/docker/pkg/archive"
)

// API is the subset of the S3 client used here.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string // defaults to DefaultEndpoint(Region)
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// DefaultEndpoint returns the S3-compatible endpoint for region.
func DefaultEndpoint(region string) string {
	return fmt.Sprintf("https://tos-s3-%s.volces.com", region)
}

// Storage manages buckets and uploads.
type Storage struct {
	api    API
	logger *slog.Logger
}

// New creates a Storage backed by an S3 client for cfg.
func New(cfg Config, logger *slog.Logger) *Storage {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint(cfg.Region)
	}
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.PathStyle,
	})
	return NewWithAPI(client, logger)
}

// NewWithAPI creates a Storage over an existing client.
func NewWithAPI(api API, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{api: api, logger: logger.With("component", "storage")}
}

// EnsureBucket creates bucket unless it already exists. created reports
// whether a bucket was created.
func (s *Storage) EnsureBucket(ctx context.Context, bucket string) (created bool, err error) {
	_, err = s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return false, nil
	}
	if !isCode(err, "NotFound", "NoSuchBucket") {
		return false, fmt.Errorf("check bucket %s: %w", bucket, err)
	}

	_, err = s.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isCode(err, "BucketAlreadyOwnedByYou") {
			return false, nil
		}
		return false, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	s.logger.Info("bucket created", "bucket", bucket)
	return true, nil
}

// Upload stores body under bucket/key.
func (s *Storage) Upload(ctx context.Context, bucket, key string, body []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/gzip"),
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	s.logger.Info("object uploaded", "bucket", bucket, "key", key, "size", len(body))
	return nil
}

// PackSource returns dir as a gzip-compressed tar, skipping paths matched by
// exclude (.dockerignore syntax).
func PackSource(dir string, exclude []string) ([]byte, error) {
	rc, err := archive.TarWithOptions(dir, &archive.TarOptions{
		Compression:     archive.Gzip,
		ExcludePatterns: exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", dir, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", dir, err)
	}
	return data, nil
}

func isCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
