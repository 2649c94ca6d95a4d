package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parkrow-labs/parkrow-go/internal/platform/env"
)

// Config points the documents service at its MinIO deployment. All lease
// paperwork lives in a single bucket; tenancy is carried in object keys,
// not in bucket names.
type Config struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Region          string
	UseSSL          bool
	BucketDocuments string
}

// ConfigFromEnv reads the PARKROW_MINIO_* variables, defaulting to a local
// development MinIO.
func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("PARKROW_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:        env.String("PARKROW_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:       env.String("PARKROW_MINIO_ACCESS_KEY", "parkrow"),
		SecretKey:       env.String("PARKROW_MINIO_SECRET_KEY", "parkrowminio"),
		Region:          env.String("PARKROW_MINIO_REGION", "us-east-1"),
		UseSSL:          useSSL,
		BucketDocuments: env.String("PARKROW_MINIO_BUCKET_DOCUMENTS", "documents"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketDocuments) == "" {
		return errors.New("documents bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
