// Package s3blob stores settlement snapshots in S3-compatible object
// storage. Before the elimination executor deletes a settled day's
// prediction rows, the archiver in this package writes them out as JSONL so
// the full history of every settled day survives the cleanup. AWS S3, MinIO
// and Cloudflare R2 are all supported through the endpoint override.
package s3blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig describes the object store the archiver writes to.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for S3-compatible providers.
	// Leave empty for AWS S3 proper.
	Endpoint string

	// Region is the bucket's region. Providers that ignore regions still
	// want a non-empty value here, "auto" usually works.
	Region string

	// Bucket receives every object this package writes.
	Bucket string

	AccessKey string
	SecretKey string

	// UseSSL picks the scheme when Endpoint is given without one.
	UseSSL bool

	// ForcePathStyle switches to path-style addressing. MinIO and most
	// self-hosted gateways need this.
	ForcePathStyle bool
}

// Client is a thin handle around the AWS SDK client plus the bucket every
// operation targets. Readers and writers in this package share one Client.
type Client struct {
	api    *s3.Client
	bucket string
}

// New dials nothing; it validates the configuration and builds the SDK
// client. Connectivity problems surface on the first call, or from Health.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	switch {
	case cfg.Bucket == "":
		return nil, fmt.Errorf("s3blob: bucket name is required")
	case cfg.Region == "":
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{api: api, bucket: cfg.Bucket}, nil
}

// Health verifies the bucket is reachable with the configured credentials.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close exists so the client slots into the app's shutdown sequence; the
// SDK holds no connections that need closing.
func (c *Client) Close() error { return nil }

// withScheme prepends http:// or https:// when the endpoint has neither.
func withScheme(endpoint string, ssl bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if ssl {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
