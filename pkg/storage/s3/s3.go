// Package s3 is the object-storage collaborator: it populates the
// unprocessed directory before a run and pushes local directories to a
// bucket. Custom endpoints and path-style addressing are supported for
// S3-compatible stores (OpenStack, MinIO, LocalStack).
package s3

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config holds S3 client configuration.
type Config struct {
	// Region is the AWS region (e.g., "us-east-1")
	Region string

	// Bucket is the bucket name
	Bucket string

	// Endpoint overrides the default S3 endpoint
	Endpoint string

	// UsePathStyle forces path-style addressing
	UsePathStyle bool

	// KeyPrefix is prepended to every object key
	KeyPrefix string

	// Credentials (optional - uses the default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string

	// OperationTimeout bounds client construction; credential
	// resolution may reach IMDS or SSO endpoints
	OperationTimeout time.Duration

	// TransferTimeout bounds one object download or upload
	TransferTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(bucket, region string) Config {
	return Config{
		Bucket:           bucket,
		Region:           region,
		OperationTimeout: 30 * time.Second,
		TransferTimeout:  5 * time.Minute,
	}
}

// Client transfers files between the local work directory and a bucket.
type Client struct {
	cfg    Config
	client *s3.Client
	logger *slog.Logger
}

// NewClient creates a client from the given configuration.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.OperationTimeout)
		defer cancel()
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Client{
		cfg:    cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		logger: logger,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// DownloadFiles fetches the named objects into destDir. A failure on
// one object is logged and the rest of the manifest still transfers; an
// error is returned only when nothing could be downloaded despite a
// non-empty manifest.
func (c *Client) DownloadFiles(ctx context.Context, manifest []string, destDir string) error {
	if len(manifest) == 0 {
		return nil
	}

	downloaded := 0
	for _, key := range manifest {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.downloadOne(ctx, key, destDir); err != nil {
			c.logger.Warn("download failed", "key", key, "error", err)
			continue
		}
		downloaded++
	}

	c.logger.Info("download complete",
		"bucket", c.cfg.Bucket, "requested", len(manifest), "downloaded", downloaded)
	if downloaded == 0 {
		return fmt.Errorf("s3: no objects downloaded from %s", c.cfg.Bucket)
	}
	return nil
}

func (c *Client) downloadOne(ctx context.Context, key, destDir string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TransferTimeout)
	defer cancel()

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.cfg.KeyPrefix + key),
	})
	if err != nil {
		return fmt.Errorf("s3: getting %s: %w", key, err)
	}
	defer out.Body.Close()

	dest := filepath.Join(destDir, filepath.Base(key))
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("s3: creating %s: %w", dest, err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("s3: writing %s: %w", dest, err)
	}
	return f.Close()
}

// UploadFile uploads a single local file under the given key.
func (c *Client) UploadFile(ctx context.Context, path, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TransferTimeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s3: opening %s: %w", path, err)
	}
	defer f.Close()

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.cfg.KeyPrefix + key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3: uploading %s: %w", key, err)
	}
	return nil
}

// UploadDirectory walks dir and uploads every regular file, preserving
// the directory structure as object keys relative to dir. Per-file
// failures are logged and the walk continues. Returns the number of
// files uploaded. This is an independent concern never invoked by the
// ingestion pipeline.
func (c *Client) UploadDirectory(ctx context.Context, dir string) (int, error) {
	uploaded := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		key, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key = filepath.ToSlash(key)

		if err := c.UploadFile(ctx, path, key); err != nil {
			c.logger.Warn("upload failed", "file", path, "error", err)
			return nil
		}

		c.logger.Info("uploaded", "file", path, "key", c.cfg.KeyPrefix+key)
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("s3: walking %s: %w", dir, err)
	}

	c.logger.Info("directory upload complete", "dir", dir, "uploaded", uploaded)
	return uploaded, nil
}
