package storage

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	ErrInvalidConfig   = errors.New("storage: bucket and credentials are required")
	ErrEmptyFile       = errors.New("storage: empty upload")
	ErrFileTooLarge    = errors.New("storage: upload too large")
	ErrInvalidBase64   = errors.New("storage: payload is not base64")
	ErrUnsupportedType = errors.New("storage: content type not accepted")

	ErrNotFound      = errors.New("storage: object not found")
	ErrAccessDenied  = errors.New("storage: access denied")
	ErrUploadFailed  = errors.New("storage: upload failed")
	ErrDeleteFailed  = errors.New("storage: delete failed")
	ErrPresignFailed = errors.New("storage: presign failed")
)

var apiErrors = map[string]error{
	"NoSuchKey":    ErrNotFound,
	"NotFound":     ErrNotFound,
	"NoSuchBucket": ErrNotFound,
	"AccessDenied": ErrAccessDenied,
	"Forbidden":    ErrAccessDenied,
}

// classify maps an SDK error onto a package sentinel, or fallback when the
// code is not one callers branch on. The SDK error is kept as text only.
func classify(err, fallback error) error {
	sentinel := fallback
	var apiErr smithy.APIError
	var noKey *types.NoSuchKey
	switch {
	case errors.As(err, &noKey):
		sentinel = ErrNotFound
	case errors.As(err, &apiErr):
		if mapped, ok := apiErrors[apiErr.ErrorCode()]; ok {
			sentinel = mapped
		}
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
