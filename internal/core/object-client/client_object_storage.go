package objectclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	cfg "github.com/markdave123-py/docuquery/internal/config"
	"github.com/markdave123-py/docuquery/internal/core"
)

// S3Client downloads documents from one bucket into a scratch directory.
type S3Client struct {
	client      *s3.Client
	bucket      string
	downloadDir string
	logger      zerolog.Logger
}

// NewS3Client uses the static keys from cfg when both are set and the
// default AWS credential chain otherwise.
func NewS3Client(ctx context.Context, cfg *cfg.Config, logger zerolog.Logger) (*S3Client, error) {
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	c, err := newS3Client(awsCfg, cfg.BucketName, cfg.DownloadDir, logger)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("bucket", cfg.BucketName).Str("region", cfg.AwsRegion).Msg("s3 object client ready")
	return c, nil
}

func newS3Client(awsCfg aws.Config, bucket, downloadDir string, logger zerolog.Logger, optFns ...func(*s3.Options)) (*S3Client, error) {
	if downloadDir == "" {
		downloadDir = os.TempDir()
	}
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &S3Client{
		client:      s3.NewFromConfig(awsCfg, optFns...),
		bucket:      bucket,
		downloadDir: downloadDir,
		logger:      logger.With().Str("component", "s3").Logger(),
	}, nil
}

// Download writes the object to a uniquely named file in the download
// directory. Closing the returned file deletes it.
func (c *S3Client) Download(ctx context.Context, key string) (*core.LocalFile, error) {
	dst := filepath.Join(c.downloadDir, uuid.NewString()+path.Ext(key))
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	downloader := manager.NewDownloader(c.client)
	n, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: s3://%s/%s", core.ErrObjectNotFound, c.bucket, key)
		}
		return nil, fmt.Errorf("s3 download failed: %w", err)
	}

	c.logger.Debug().Str("key", key).Int64("bytes", n).Str("path", dst).Msg("object downloaded")

	return core.NewLocalFile(key, dst, n, func() error {
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}), nil
}
