package objectstore

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Endpoint:        "localhost:9000",
		AccessKey:       "parkrow",
		SecretKey:       "parkrowminio",
		Region:          "us-east-1",
		BucketDocuments: "documents",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Endpoint = " " },
			wantErr: "endpoint is required",
		},
		{
			name:    "missing access key",
			mutate:  func(c *Config) { c.AccessKey = "" },
			wantErr: "access key is required",
		},
		{
			name:    "missing secret key",
			mutate:  func(c *Config) { c.SecretKey = "" },
			wantErr: "secret key is required",
		},
		{
			name:    "missing region",
			mutate:  func(c *Config) { c.Region = "" },
			wantErr: "region is required",
		},
		{
			name:    "missing documents bucket",
			mutate:  func(c *Config) { c.BucketDocuments = "" },
			wantErr: "documents bucket is required",
		},
		{
			name:    "endpoint with scheme",
			mutate:  func(c *Config) { c.Endpoint = "http://localhost:9000" },
			wantErr: "must not include scheme",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error = %v", err)
	}
	if cfg.Endpoint != "localhost:9000" {
		t.Errorf("Endpoint = %q, want localhost:9000", cfg.Endpoint)
	}
	if cfg.BucketDocuments != "documents" {
		t.Errorf("BucketDocuments = %q, want documents", cfg.BucketDocuments)
	}
	if cfg.UseSSL {
		t.Error("UseSSL = true, want false by default")
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PARKROW_MINIO_ENDPOINT", "minio.internal:9000")
	t.Setenv("PARKROW_MINIO_BUCKET_DOCUMENTS", "parkrow-docs")
	t.Setenv("PARKROW_MINIO_USE_SSL", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error = %v", err)
	}
	if cfg.Endpoint != "minio.internal:9000" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.BucketDocuments != "parkrow-docs" {
		t.Errorf("BucketDocuments = %q", cfg.BucketDocuments)
	}
	if !cfg.UseSSL {
		t.Error("UseSSL = false, want true")
	}
}
