package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/pkg/config"
	"github.com/zatekoja/trafficpipeline/pkg/retry"
)

// Client wraps an S3-compatible object store client bound to one bucket
type Client struct {
	client *minio.Client
	bucket string
}

// NewClient connects to the object store and makes sure the bucket exists
func NewClient(ctx context.Context, cfg *config.ArchiveConfig, logger zerolog.Logger) (*Client, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	err = retry.DoWithLog(
		ctx,
		retry.DefaultConfig(),
		"ObjectStore",
		func() error {
			exists, err := cli.BucketExists(ctx, cfg.Bucket)
			if err != nil {
				switch minio.ToErrorResponse(err).Code {
				case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
					return retry.Permanent(err)
				}
				return err
			}
			if exists {
				return nil
			}
			return cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("retry_in", nextDelay).
				Str("bucket", cfg.Bucket).
				Msg("Object store not ready")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare bucket %s: %w", cfg.Bucket, err)
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("Connected to object store")
	return &Client{client: cli, bucket: cfg.Bucket}, nil
}

// Client returns the underlying minio client
func (c *Client) Client() *minio.Client {
	return c.client
}

// Bucket returns the bucket the client writes to
func (c *Client) Bucket() string {
	return c.bucket
}
