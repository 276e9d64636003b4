package sink

import (
	"context"
	"fmt"
	"os"

	"hist-go/internal/config"
	"hist-go/internal/hist"
)

// NewSinkFromConfig creates a Sink implementation based on the sink config type.
func NewSinkFromConfig(cfg config.SinkConfig) (hist.Sink, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("sink of type %q has no name", cfg.Type)
	}
	switch cfg.Type {
	case "memory":
		return NewMemorySink(cfg.Name), nil
	case "s3":
		s, err := NewS3Sink(context.Background(), cfg, s3CredentialsFromEnv())
		if err != nil {
			return nil, err
		}
		return s, nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem sink requires fs_root to be set")
		}
		s, err := NewFileSystemSink(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}

// NewSinksFromConfig creates every configured sink, rejecting duplicate names.
func NewSinksFromConfig(cfgs []config.SinkConfig) ([]hist.Sink, error) {
	seen := make(map[string]bool, len(cfgs))
	sinks := make([]hist.Sink, 0, len(cfgs))
	for _, c := range cfgs {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate sink name: %s", c.Name)
		}
		seen[c.Name] = true

		s, err := NewSinkFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("creating sink %s: %w", c.Name, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func s3CredentialsFromEnv() *S3Credentials {
	id := os.Getenv("HIST_S3_ACCESS_KEY_ID")
	secret := os.Getenv("HIST_S3_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return nil
	}
	return &S3Credentials{AccessKeyID: id, SecretAccessKey: secret}
}
