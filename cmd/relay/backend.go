package main

import (
	"context"
	"fmt"
	"net/http"

	gcstorage "cloud.google.com/go/storage"
	"github.com/imrenagi/go-drive-relay/config"
	"github.com/imrenagi/go-drive-relay/storage"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func instrumentedClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// newUploader builds the configured storage backend. The returned cleanup
// releases backend clients and is never nil.
func newUploader(ctx context.Context, cfg config.Config) (storage.Uploader, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.BackendDrive:
		svc, err := storage.NewDriveService(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile)
		if err != nil {
			return nil, noop, err
		}
		return storage.NewDrive(svc), noop, nil
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("gcs client: %w", err)
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("unable to close gcs client")
			}
		}
		return storage.NewGCS(client, cfg.GCSBucket), cleanup, nil
	case config.BackendS3:
		client, err := storage.NewS3Client(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, noop, err
		}
		return storage.NewS3(client, cfg.S3Bucket), noop, nil
	case config.BackendTus:
		t, err := storage.NewTus(cfg.TusEndpoint, instrumentedClient())
		if err != nil {
			return nil, noop, err
		}
		return t, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
