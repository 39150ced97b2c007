package storage

import "time"

// Option configures Put.
type Option func(*putOptions)

type putOptions struct {
	key         string
	prefix      string
	contentType string
	acl         ACL
	accept      func(contentType string) bool
}

// WithKey stores the object under key instead of a generated one.
func WithKey(key string) Option {
	return func(o *putOptions) { o.key = key }
}

// WithPrefix puts a generated key under prefix, e.g. "results/{uuid}.png".
func WithPrefix(prefix string) Option {
	return func(o *putOptions) { o.prefix = prefix }
}

// WithContentType skips detection.
func WithContentType(ct string) Option {
	return func(o *putOptions) { o.contentType = ct }
}

// WithACL overrides Config.DefaultACL for one upload.
func WithACL(acl ACL) Option {
	return func(o *putOptions) { o.acl = acl }
}

// WithAccept rejects uploads whose content type fails fn with
// ErrUnsupportedType, before anything is sent.
//
//	storage.PutBase64(ctx, s, payload, storage.WithAccept(storage.IsImageMIME))
func WithAccept(fn func(contentType string) bool) Option {
	return func(o *putOptions) { o.accept = fn }
}

// URLOption configures URL.
type URLOption func(*urlOptions)

type urlOptions struct {
	expiry      time.Duration
	forceSigned bool
}

// WithExpiry presigns the URL for d even when objects are public.
// Default 24h.
func WithExpiry(d time.Duration) URLOption {
	return func(o *urlOptions) {
		o.forceSigned = true
		if d > 0 {
			o.expiry = d
		}
	}
}
