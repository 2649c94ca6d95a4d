package objectstore

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinIOClient builds the client the documents service uses for lease
// paperwork. The transport carries no overall request timeout; large
// uploads run as long as they need, individual dials and handshakes stay
// bounded.
func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	})
}

// EnsureBucket creates the documents bucket if it does not exist yet, so a
// fresh deployment needs no manual MinIO setup.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg Config) error {
	exists, err := client.BucketExists(ctx, cfg.BucketDocuments)
	if err != nil {
		return fmt.Errorf("documents bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, cfg.BucketDocuments, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make documents bucket: %w", err)
	}
	return nil
}

// CheckBucket is the readiness probe: it fails when the bucket is missing
// or the store is unreachable.
func CheckBucket(ctx context.Context, client *minio.Client, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	exists, err := client.BucketExists(ctx, cfg.BucketDocuments)
	if err != nil {
		return fmt.Errorf("documents bucket exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("documents bucket missing: %s", cfg.BucketDocuments)
	}
	return nil
}
