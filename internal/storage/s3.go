package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Compile-time check that S3 implements Storage.
var _ Storage = (*S3)(nil)

// S3Config holds the configuration for S3-compatible storage.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// s3API is the subset of the S3 client used by this store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores files in an S3-compatible bucket under an optional key prefix.
type S3 struct {
	client s3API
	bucket string
	prefix string
	region string
	logger *slog.Logger
}

// NewS3 creates an S3 store. The bucket is required; its absence is a
// configuration error surfaced at construction time.
func NewS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, newError("S3 bucket is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, newError("load AWS config", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
		logger: logger,
	}, nil
}

// newS3WithClient builds an S3 store around an existing client. Test hook.
func newS3WithClient(client s3API, bucket, prefix, region string, logger *slog.Logger) *S3 {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		region: region,
		logger: logger,
	}
}

// Upload puts the source file into the bucket and returns the object key
// and an S3 URL.
func (s *S3) Upload(ctx context.Context, source, destinationName, contentType string) (Result, error) {
	f, err := os.Open(source) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, newError(fmt.Sprintf("source file does not exist: %s", source), err)
		}
		return Result{}, newError("open source file", err)
	}
	defer func() { _ = f.Close() }()

	key := s.buildKey(destinationName, source)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Result{}, newError("upload to S3", err)
	}

	s.logger.Info("uploaded file to S3",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.String("source", source),
	)

	return Result{Key: key, URL: fmt.Sprintf("s3://%s/%s", s.bucket, key)}, nil
}

// Delete removes the object stored under key.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return newError(fmt.Sprintf("delete S3 object %s", key), err)
	}

	s.logger.Info("deleted S3 object",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
	)
	return nil
}

// buildKey derives the object key from the destination name (or a random
// name with the source extension) and the configured prefix.
func (s *S3) buildKey(destinationName, source string) string {
	name := destinationName
	if name == "" {
		name = strings.ReplaceAll(uuid.New().String(), "-", "") + filepath.Ext(source)
	}
	if s.prefix != "" {
		return s.prefix + "/" + strings.TrimPrefix(name, "/")
	}
	return strings.TrimPrefix(name, "/")
}
