package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
)

// PutBytes uploads data.
func PutBytes(ctx context.Context, s Storage, data []byte, opts ...Option) (*FileInfo, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return s.Put(ctx, bytes.NewReader(data), int64(len(data)), opts...)
}

// PutBase64 decodes a base64 payload and uploads it. A data URI prefix such as
// "data:image/png;base64," is accepted and its media type is used as content type.
func PutBase64(ctx context.Context, s Storage, payload string, opts ...Option) (*FileInfo, error) {
	payload = strings.TrimSpace(payload)
	if mediaType, data, ok := cutDataURI(payload); ok {
		payload = data
		if mediaType != "" {
			opts = append([]Option{WithContentType(mediaType)}, opts...)
		}
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, ErrInvalidBase64
	}
	return PutBytes(ctx, s, data, opts...)
}

func cutDataURI(s string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", s, false
	}
	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", s, false
	}
	mediaType, _, _ = strings.Cut(meta, ";")
	return mediaType, data, true
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, ErrInvalidBase64
}
