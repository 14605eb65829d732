package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/logsift/logsift/pkg/config"
	"github.com/logsift/logsift/pkg/storage/s3"
)

var uploadDir string

var uploadCmd = &cobra.Command{
	Use:   "upload [directory]",
	Short: "Upload a local directory tree to object storage",
	Long: `Upload every file under a directory to the configured bucket,
preserving the directory structure as object keys. This is independent
of the ingestion pass and never invoked by it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadDir, "dir", "", "directory to upload (default from config)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()

	mgr := config.NewManager()
	if err := mgr.Load(); err != nil {
		return err
	}
	cfg := mgr.Get()

	dir := cfg.Storage.UploadDir
	if uploadDir != "" {
		dir = uploadDir
	}
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no upload directory given (flag, argument or config)")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("upload directory: %w", err)
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("no bucket configured")
	}

	client, err := s3.NewClient(ctx, s3.Config{
		Region:           cfg.Storage.Region,
		Bucket:           cfg.Storage.Bucket,
		Endpoint:         cfg.Storage.Endpoint,
		UsePathStyle:     cfg.Storage.PathStyle,
		KeyPrefix:        cfg.Storage.KeyPrefix,
		AccessKeyID:      cfg.Storage.AccessKey,
		SecretAccessKey:  cfg.Storage.SecretKey,
		OperationTimeout: 30 * time.Second,
		TransferTimeout:  5 * time.Minute,
	}, logger)
	if err != nil {
		return err
	}

	uploaded, err := client.UploadDirectory(ctx, dir)
	if err != nil {
		return err
	}

	fmt.Printf("uploaded %d files from %s to %s\n", uploaded, dir, cfg.Storage.Bucket)
	return nil
}
