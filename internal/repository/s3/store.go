// Package s3 implements the blob store on S3-compatible object storage (AWS S3, MinIO).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository"
)

// Config holds configuration for Store.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (for MinIO, LocalStack, etc.)
}

// Store implements repository.BlobStore using an S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
}

var _ repository.BlobStore = (*Store)(nil)

// New creates an S3-backed blob store using the default credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithConfig(awsCfg, cfg), nil
}

// NewWithConfig builds a store from an existing aws.Config.
func NewWithConfig(awsCfg aws.Config, cfg Config, extra ...func(*s3.Options)) *Store {
	opts := []func(*s3.Options){func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	}}
	opts = append(opts, extra...)
	return &Store{client: s3.NewFromConfig(awsCfg, opts...), bucket: cfg.Bucket}
}

// List pages through all keys under prefix. ListObjectsV2 carries no user
// metadata, so each key is followed by a HeadObject.
func (s *Store) List(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var out []model.ObjectInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return nil, fmt.Errorf("s3 head %s: %w", key, err)
			}
			out = append(out, model.ObjectInfo{
				Name:      key,
				UpdatedAt: aws.ToTime(obj.LastModified),
				Metadata:  head.Metadata,
			})
		}
	}
	return out, nil
}

// Get downloads an object body.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", name, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get failed for %s: %w", name, err)
	}
	defer func() { _ = result.Body.Close() }()

	return io.ReadAll(result.Body)
}

// Put uploads a new object with If-None-Match so an existing key is never replaced.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string, meta map[string]string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    meta,
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("%s: %w", name, errs.ErrAlreadyExists)
		}
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}
