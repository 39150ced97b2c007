package storage

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// object is an upload after options, limits and content detection have been
// applied. Both backends store exactly this.
type object struct {
	key         string
	contentType string
	acl         ACL
	size        int64
	body        io.ReadSeeker
}

func newObject(r io.Reader, size, maxSize int64, acl ACL, opts []Option) (*object, error) {
	switch {
	case size == 0 || r == nil:
		return nil, ErrEmptyFile
	case maxSize > 0 && size > maxSize:
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, size, maxSize)
	}

	o := putOptions{acl: acl}
	for _, opt := range opts {
		opt(&o)
	}

	obj := &object{key: o.key, contentType: o.contentType, acl: o.acl, size: size}
	if obj.contentType == "" {
		obj.contentType, obj.body = detectMIMEWithReader(r)
	} else if rs, ok := r.(io.ReadSeeker); ok {
		obj.body = rs
	} else {
		// The AWS SDK seeks the body to sign it.
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("storage: read input: %w", err)
		}
		obj.body = bytes.NewReader(data)
	}

	if o.accept != nil && !o.accept(obj.contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, obj.contentType)
	}
	if obj.key == "" {
		obj.key = buildKey(o.prefix, obj.contentType)
	}
	return obj, nil
}

// buildKey returns {prefix}/{uuid}{ext}; unknown types get ".bin".
func buildKey(prefix, contentType string) string {
	ext := ExtFromMIME(contentType)
	if ext == "" {
		ext = ".bin"
	}
	name := uuid.NewString() + ext
	if prefix = sanitizePathSegment(prefix); prefix != "" {
		return prefix + "/" + name
	}
	return name
}

// sanitizePathSegment flattens prefix into one safe key segment: dot
// segments are dropped, the rest are joined with "_", and anything outside
// [A-Za-z0-9._-] becomes "_".
func sanitizePathSegment(prefix string) string {
	var parts []string
	for _, p := range strings.FieldsFunc(path.Clean("/"+prefix), func(r rune) bool { return r == '/' || r == '\\' }) {
		if p = strings.Trim(p, "."); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.Join(parts, "_"))
}
