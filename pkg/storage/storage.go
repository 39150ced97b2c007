package storage

import (
	"context"
	"io"
	"time"
)

// Storage stores media objects and hands out URLs for them.
type Storage interface {
	// Put uploads r. size is sent as content length.
	Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error)

	// Delete removes an object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link the channel can fetch the object from: the public
	// URL for public-read objects, a presigned one otherwise.
	URL(ctx context.Context, key string, opts ...URLOption) (string, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Bucket    string `env:"S3_BUCKET"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	// Endpoint is set for MinIO and other S3-compatible services.
	Endpoint string `env:"S3_ENDPOINT"`
	Region   string `env:"S3_REGION" envDefault:"us-east-1"`
	// PublicURL is a CDN prefix used instead of the bucket URL.
	PublicURL  string `env:"S3_PUBLIC_URL"`
	DefaultACL ACL    `env:"S3_DEFAULT_ACL" envDefault:"public-read"`
	PathStyle  bool   `env:"S3_PATH_STYLE" envDefault:"false"`
	// MaxUploadSize caps a single object, in bytes.
	MaxUploadSize int64 `env:"S3_MAX_UPLOAD_SIZE" envDefault:"20971520"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// FileInfo describes a stored object.
type FileInfo struct {
	Key         string
	ContentType string
	ACL         ACL
	Size        int64
}

// ACL is the access level of a stored object.
type ACL string

const (
	ACLPrivate    ACL = "private"
	ACLPublicRead ACL = "public-read"
)

const (
	DefaultRegion        = "us-east-1"
	DefaultMaxUploadSize = 20 << 20
	DefaultURLExpiry     = 24 * time.Hour
)

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.DefaultACL == "" {
		c.DefaultACL = ACLPublicRead
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = DefaultMaxUploadSize
	}
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
