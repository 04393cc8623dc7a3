package blob

import (
	"context"
	"fmt"

	"evidencevault/internal/config"
)

// FromConfig builds the backend selected by BLOB_BACKEND.
func FromConfig(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobLocal:
		return NewLocal(cfg.BlobDir)
	case config.BlobS3:
		return NewS3(ctx, S3Options{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
