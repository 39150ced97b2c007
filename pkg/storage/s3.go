package storage

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage implements Storage on S3-compatible object storage.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	cfg       Config
}

// New creates an S3Storage. Endpoint and PathStyle target MinIO and other
// S3-compatible services; without Endpoint the AWS regional endpoint is used.
func New(cfg Config) (*S3Storage, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		}
	})
	return &S3Storage{client: client, presigner: s3.NewPresignClient(client), cfg: cfg}, nil
}

func (s *S3Storage) Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error) {
	obj, err := newObject(r, size, s.cfg.MaxUploadSize, s.cfg.DefaultACL, opts)
	if err != nil {
		return nil, err
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(obj.key),
		Body:          obj.body,
		ContentLength: aws.Int64(obj.size),
		ContentType:   aws.String(obj.contentType),
		ACL:           types.ObjectCannedACLPrivate,
	}
	if obj.acl == ACLPublicRead {
		in.ACL = types.ObjectCannedACLPublicRead
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return nil, classify(err, ErrUploadFailed)
	}
	return &FileInfo{Key: obj.key, Size: obj.size, ContentType: obj.contentType, ACL: obj.acl}, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(err, ErrDeleteFailed)
	}
	return nil
}

func (s *S3Storage) URL(ctx context.Context, key string, opts ...URLOption) (string, error) {
	o := urlOptions{expiry: DefaultURLExpiry}
	for _, opt := range opts {
		opt(&o)
	}
	if s.cfg.DefaultACL == ACLPublicRead && !o.forceSigned {
		return s.publicURL(key), nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(o.expiry))
	if err != nil {
		return "", classify(err, ErrPresignFailed)
	}
	return req.URL, nil
}

// publicURL prefers the CDN, then the custom endpoint, then the AWS
// virtual-hosted bucket URL.
func (s *S3Storage) publicURL(key string) string {
	base := s.cfg.PublicURL
	switch {
	case base != "":
	case s.cfg.Endpoint != "" && s.cfg.PathStyle:
		base, _ = url.JoinPath(s.cfg.Endpoint, s.cfg.Bucket)
	case s.cfg.Endpoint != "":
		base = s.cfg.Endpoint
	default:
		base = "https://" + s.cfg.Bucket + ".s3." + s.cfg.Region + ".amazonaws.com"
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}

var _ Storage = (*S3Storage)(nil)
