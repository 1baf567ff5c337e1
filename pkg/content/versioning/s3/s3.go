// Package s3 implements a versioning service on Amazon S3 or S3-compatible
// storage.
//
// Artifacts are stored under human-readable keys
// "<prefix><resourceID>/<versionID>/<logical path>", so the bucket mirrors
// the repository structure and can be inspected (or reconstructed from) with
// standard tooling. The resulting locators use the "s3" scheme, which the
// content service returns to callers unresolved; outer surfaces decide how
// to dereference them (presigned URLs, gateway download, ...).
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/baserepo/internal/logger"
	"github.com/marmos91/baserepo/pkg/content/versioning"
)

// S3Service implements versioning.Service on an S3 bucket.
type S3Service struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
}

// Config contains S3 backend settings.
type Config struct {
	// Bucket is the bucket name. Must already exist.
	Bucket string `mapstructure:"bucket"`

	// Region is the AWS region.
	Region string `mapstructure:"region"`

	// Endpoint is an optional custom endpoint for S3-compatible storage.
	Endpoint string `mapstructure:"endpoint"`

	// AccessKey and SecretKey configure static credentials. When empty the
	// default AWS credential chain is used.
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	// KeyPrefix is an optional prefix for all object keys.
	KeyPrefix string `mapstructure:"key_prefix"`

	// UsePathStyle forces path-style addressing (required by MinIO and
	// most S3-compatible endpoints).
	UsePathStyle bool `mapstructure:"use_path_style"`
}

// NewS3Service creates the S3 versioning service.
func NewS3Service(ctx context.Context, cfg Config) (*S3Service, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 versioning requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	keyPrefix := cfg.KeyPrefix
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, "/") {
		keyPrefix += "/"
	}

	return &S3Service{client: client, bucket: cfg.Bucket, keyPrefix: keyPrefix}, nil
}

// Configure verifies bucket access. The bucket is not created here.
func (s *S3Service) Configure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to access bucket %s: %w", s.bucket, err)
	}

	return nil
}

func (s *S3Service) objectKey(resourceID, path, versionID string) string {
	return s.keyPrefix + resourceID + "/" + versionID + "/" + path
}

func (s *S3Service) Write(ctx context.Context, resourceID, callerID, path string, r io.Reader, opts versioning.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := s.objectKey(resourceID, path, opts[versioning.OptionVersion])

	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write content to S3: %w", err)
	}

	logger.Debug("stored content for %s/%s at s3://%s/%s (caller %s)",
		resourceID, path, s.bucket, key, callerID)
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *S3Service) Read(ctx context.Context, resourceID, callerID, path, versionID string, w io.Writer, opts versioning.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.objectKey(resourceID, path, versionID)

	output, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	defer func() { _ = output.Body.Close() }()

	if _, err := io.Copy(w, output.Body); err != nil {
		return fmt.Errorf("failed to stream s3://%s/%s: %w", s.bucket, key, err)
	}

	return nil
}

func (s *S3Service) Info(ctx context.Context, resourceID, path, versionID string, opts versioning.Options) (*versioning.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.objectKey(resourceID, path, versionID)

	head, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stat s3://%s/%s: %w", s.bucket, key, err)
	}

	info := &versioning.Info{
		ResourceID: resourceID,
		Path:       path,
		VersionID:  versionID,
		URI:        "s3://" + s.bucket + "/" + key,
		Size:       aws.ToInt64(head.ContentLength),
	}
	if head.LastModified != nil {
		info.Timestamp = *head.LastModified
	}

	return info, nil
}

var _ versioning.Service = (*S3Service)(nil)
