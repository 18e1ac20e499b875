package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk description of one FileDB deployment.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

// IndexConfig selects and configures the metadata backend.
type IndexConfig struct {
	// Kind is "bolt" or "mongo".
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`

	// BoltPath is the directory NewBoltIndex opens its file in. Only
	// meaningful when Kind == "bolt".
	BoltPath string `yaml:"bolt_path,omitempty"`

	// MongoURI and MongoDatabase configure a document-store-backed
	// Index. Only meaningful when Kind == "mongo".
	MongoURI      string `yaml:"mongo_uri,omitempty"`
	MongoDatabase string `yaml:"mongo_database,omitempty"`
}

// StorageConfig selects and configures the byte-blob backend.
type StorageConfig struct {
	// Kind is "local", "s3", or "gcs".
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`

	// LocalRoot is the sharded directory root. Only meaningful when
	// Kind == "local".
	LocalRoot string `yaml:"local_root,omitempty"`

	// Bucket and Prefix configure an S3 or GCS adapter. Only
	// meaningful when Kind is "s3" or "gcs".
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`

	// S3Region and S3Endpoint configure the AWS SDK session used to
	// build an S3Client. Only meaningful when Kind == "s3"; a blank
	// S3Endpoint uses the SDK's default resolver.
	S3Region   string `yaml:"s3_region,omitempty"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty"`
}

// CacheConfig configures the local cache shared by every Sync storage.
type CacheConfig struct {
	Root string `yaml:"root"`

	// MaxBytes bounds the cache's on-disk size. The specification
	// carries this field through configuration but leaves eviction
	// policy unimplemented (see DESIGN.md); zero means unbounded.
	MaxBytes int64 `yaml:"max_bytes,omitempty"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// Load reads and parses a Config from path, applying defaults for any
// omitted field that has a sane one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Index.Name == "" {
		c.Index.Name = "default"
	}
	if c.Storage.Name == "" {
		c.Storage.Name = c.Storage.Kind
	}
}

// Validate rejects a Config that names an unknown backend kind or is
// missing a field a chosen kind requires.
func (c *Config) Validate() error {
	switch c.Index.Kind {
	case "bolt":
		if c.Index.BoltPath == "" {
			return fmt.Errorf("index.bolt_path is required for kind=bolt")
		}
	case "mongo":
		if c.Index.MongoURI == "" || c.Index.MongoDatabase == "" {
			return fmt.Errorf("index.mongo_uri and index.mongo_database are required for kind=mongo")
		}
	default:
		return fmt.Errorf("index.kind must be \"bolt\" or \"mongo\", got %q", c.Index.Kind)
	}

	switch c.Storage.Kind {
	case "local":
		if c.Storage.LocalRoot == "" {
			return fmt.Errorf("storage.local_root is required for kind=local")
		}
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for kind=%s", c.Storage.Kind)
		}
		if c.Cache.Root == "" {
			return fmt.Errorf("cache.root is required for a Sync storage (kind=%s)", c.Storage.Kind)
		}
	default:
		return fmt.Errorf("storage.kind must be \"local\", \"s3\", or \"gcs\", got %q", c.Storage.Kind)
	}

	return nil
}
