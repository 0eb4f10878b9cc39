// Package config holds the settings of one filesync run and checks them
// before any work starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/studio1767/filesync/internal/job"
	"github.com/studio1767/filesync/internal/manifest"
	"github.com/studio1767/filesync/internal/remote"
	"github.com/studio1767/filesync/internal/remote/openai"
)

const (
	StoreOpenAI = "openai"
	StoreS3     = "s3"
)

var (
	DefaultRoot       = "LEE _ CUSTOM AI STOCK AGENT"
	DefaultMaxWorkers = 4
	DefaultMaxSizeMB  = 512
)

// ConfigError is a problem found before any work begins.
type ConfigError struct {
	Field string
	msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.msg)
}

func configError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, msg: fmt.Sprintf(format, args...)}
}

type Config struct {
	Root          string
	DryRun        bool
	Cleanup       bool
	VectorStoreID string
	MaxWorkers    int
	MaxSizeMB     int
	JobFile       string
	ManifestPath  string
	Verbose       bool

	Store string

	// openai
	APIKey  string
	BaseURL string

	// s3
	Bucket     string
	Prefix     string
	Profile    string
	Recipients string
}

// Validate normalises paths and fills in defaults. Every failure is a
// *ConfigError.
func (c *Config) Validate() error {
	if c.Store == "" {
		c.Store = StoreOpenAI
	}
	c.Store = strings.ToLower(c.Store)
	c.VectorStoreID = strings.TrimSpace(c.VectorStoreID)

	switch c.Store {
	case StoreOpenAI:
		if c.APIKey == "" {
			return configError("credentials", "OPENAI_API_KEY is not set")
		}
		if c.BaseURL == "" {
			c.BaseURL = openai.DefaultBaseURL
		}
	case StoreS3:
		if c.Bucket == "" {
			return configError("bucket", "the s3 store needs --bucket")
		}
		if c.VectorStoreID != "" {
			return configError("destination", "--vector-store-id is not supported by the s3 store")
		}
		if c.Recipients != "" {
			f, err := os.Open(c.Recipients)
			if err != nil {
				return configError("recipients", "%s", err)
			}
			f.Close()
		}
	default:
		return configError("store", "unknown store %q", c.Store)
	}

	if c.Root == "" {
		return configError("root", "no root directory given")
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return configError("root", "%s", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return configError("root", "root directory not found: %s", root)
	}
	if !info.IsDir() {
		return configError("root", "not a directory: %s", root)
	}
	c.Root = root

	if c.MaxWorkers < 1 {
		return configError("max-workers", "must be at least 1, got %d", c.MaxWorkers)
	}
	if c.MaxSizeMB < 1 {
		return configError("max-size-mb", "must be at least 1, got %d", c.MaxSizeMB)
	}

	if c.ManifestPath == "" {
		c.ManifestPath = manifest.DefaultPath(c.Root)
	} else if c.ManifestPath, err = filepath.Abs(c.ManifestPath); err != nil {
		return configError("manifest", "%s", err)
	}

	return nil
}

// Destination is resolved once per run.
func (c *Config) Destination() remote.Destination {
	if c.VectorStoreID != "" {
		return remote.VectorStoreDestination(c.VectorStoreID)
	}
	return remote.Files()
}

func (c *Config) MaxBytes() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

// Job loads the job file, or the default job when none is set.
func (c *Config) Job() (*job.Job, error) {
	if c.JobFile == "" {
		return job.Default(), nil
	}
	j, err := job.Load(c.JobFile)
	if err != nil {
		return nil, configError("job", "%s", err)
	}
	return j, nil
}
