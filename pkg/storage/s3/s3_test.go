package s3

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("logs", "us-east-1")

	if cfg.Bucket != "logs" || cfg.Region != "us-east-1" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.OperationTimeout <= 0 {
		t.Error("no operation timeout")
	}
	if cfg.TransferTimeout <= 0 {
		t.Error("no transfer timeout")
	}
}

func TestNewClientStaticCredentials(t *testing.T) {
	cfg := DefaultConfig("logs", "us-east-1")
	cfg.Endpoint = "http://127.0.0.1:9000"
	cfg.UsePathStyle = true
	cfg.AccessKeyID = "test"
	cfg.SecretAccessKey = "secret"
	cfg.OperationTimeout = 2 * time.Second

	// Static credentials keep construction offline; the operation
	// timeout bounds it either way.
	c, err := NewClient(context.Background(), cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Bucket() != "logs" {
		t.Errorf("bucket = %q", c.Bucket())
	}
}
