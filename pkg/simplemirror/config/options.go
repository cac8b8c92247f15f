package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *Config) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithMemoryStorage selects the in-memory object store
func WithMemoryStorage(baseURL string) Option {
	return func(c *Config) error {
		c.Storage.Backend = "memory"
		if baseURL != "" {
			c.Storage.LocalBaseURL = baseURL
		}
		return nil
	}
}

// WithFSStorage selects the filesystem object store rooted at baseDir
func WithFSStorage(baseDir, baseURL string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return fmt.Errorf("base directory cannot be empty")
		}
		c.Storage.Backend = "fs"
		c.Storage.FSBaseDir = baseDir
		if baseURL != "" {
			c.Storage.LocalBaseURL = baseURL
		}
		return nil
	}
}

// WithS3Storage selects an S3-compatible object store
func WithS3Storage(region, bucket, keyID, keySecret string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		if region == "" {
			return fmt.Errorf("region cannot be empty")
		}
		c.Storage.Backend = "s3"
		c.Storage.Region = region
		c.Storage.Bucket = bucket
		c.Storage.KeyID = keyID
		c.Storage.KeySecret = keySecret
		return nil
	}
}

// WithS3Endpoint overrides the S3 endpoint, e.g. for MinIO
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *Config) error {
		c.Storage.Endpoint = endpoint
		c.Storage.UsePathStyle = usePathStyle
		return nil
	}
}

// WithDatabase configures the cache database URL and schema
func WithDatabase(url, schema string) Option {
	return func(c *Config) error {
		c.Database.URL = url
		c.Database.Schema = schema
		return nil
	}
}

// WithLRU configures the in-process cache front. A size of 0 disables it.
func WithLRU(size int, ttl time.Duration) Option {
	return func(c *Config) error {
		if size < 0 {
			return fmt.Errorf("lru size cannot be negative, got: %d", size)
		}
		c.Cache.LRUSize = size
		if ttl > 0 {
			c.Cache.LRUTTL = ttl
		}
		return nil
	}
}

// WithWorkers sets the fan-out pool size
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("workers must be positive, got: %d", n)
		}
		c.Mirror.Workers = n
		return nil
	}
}

// WithMaxAttempts sets the upload attempt limit
func WithMaxAttempts(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("max attempts must be positive, got: %d", n)
		}
		c.Mirror.MaxAttempts = n
		return nil
	}
}

// WithSpecialHosts replaces the browser fallback allow-list
func WithSpecialHosts(hosts ...string) Option {
	return func(c *Config) error {
		c.Mirror.SpecialHosts = append([]string(nil), hosts...)
		return nil
	}
}

// WithBrowserURL sets the headless browser render endpoint
func WithBrowserURL(url string) Option {
	return func(c *Config) error {
		c.Fetch.BrowserURL = url
		return nil
	}
}
