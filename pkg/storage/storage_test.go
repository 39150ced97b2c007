package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG.
var pngPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		s, err := New(Config{Bucket: "media", AccessKey: "ak", SecretKey: "sk"})
		require.NoError(t, err)
		require.NotNil(t, s.client)
		require.NotNil(t, s.presigner)
		assert.Equal(t, DefaultRegion, s.cfg.Region)
		assert.Equal(t, ACLPublicRead, s.cfg.DefaultACL)
		assert.Equal(t, int64(DefaultMaxUploadSize), s.cfg.MaxUploadSize)
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()
		s, err := New(Config{Bucket: "media"})
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Nil(t, s)
	})
}

func TestS3Storage_Put_Limits(t *testing.T) {
	t.Parallel()
	s, err := New(Config{Bucket: "media", AccessKey: "ak", SecretKey: "sk", MaxUploadSize: 4})
	require.NoError(t, err)

	_, err = s.Put(context.Background(), nil, 0)
	assert.ErrorIs(t, err, ErrEmptyFile)
	_, err = PutBytes(context.Background(), s, []byte("too large"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestS3Storage_publicURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "bucket url",
			cfg:  Config{Bucket: "media", Region: "eu-west-1"},
			want: "https://media.s3.eu-west-1.amazonaws.com/results/a.png",
		},
		{
			name: "cdn prefix",
			cfg:  Config{Bucket: "media", PublicURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/results/a.png",
		},
		{
			name: "path style endpoint",
			cfg:  Config{Bucket: "media", Endpoint: "http://localhost:9000", PathStyle: true},
			want: "http://localhost:9000/media/results/a.png",
		},
		{
			name: "virtual host endpoint",
			cfg:  Config{Bucket: "media", Endpoint: "http://localhost:9000/"},
			want: "http://localhost:9000/results/a.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &S3Storage{cfg: tt.cfg}
			assert.Equal(t, tt.want, s.publicURL("results/a.png"))
		})
	}
}

func TestS3Storage_URL_Public(t *testing.T) {
	t.Parallel()
	s, err := New(Config{Bucket: "media", AccessKey: "ak", SecretKey: "sk", PublicURL: "https://cdn.example.com"})
	require.NoError(t, err)

	url, err := s.URL(context.Background(), "results/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/results/a.png", url)
}

func TestBuildKey(t *testing.T) {
	t.Parallel()
	uuidRe := `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

	assert.Regexp(t, `^`+uuidRe+`\.png$`, buildKey("", "image/png"))
	assert.Regexp(t, `^results/`+uuidRe+`\.jpg$`, buildKey("results", "image/jpeg; charset=binary"))
	assert.Regexp(t, `^`+uuidRe+`\.bin$`, buildKey("", "application/x-unknown"))
	assert.Regexp(t, `^etc/`+uuidRe+`\.bin$`, buildKey("../../../etc", ""))
}

func TestSanitizePathSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"results", "results"},
		{"my folder", "my_folder"},
		{"/path/to/", "path_to"},
		{"..hidden", "hidden"},
		{"", ""},
		{"job-1_a.b", "job-1_a.b"},
		{"results/2026/../10", "results_10"},
		{`a\b`, "a_b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizePathSegment(tt.input), "input %q", tt.input)
	}
}

func TestMemoryStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory("https://media.local/")

	info, err := PutBytes(ctx, m, pngPixel, WithPrefix("results"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, int64(len(pngPixel)), info.Size)

	url, err := m.URL(ctx, info.Key)
	require.NoError(t, err)
	assert.Equal(t, "https://media.local/"+info.Key, url)

	data, ct, ok := m.Object(info.Key)
	require.True(t, ok)
	assert.Equal(t, pngPixel, data)
	assert.Equal(t, "image/png", ct)

	require.NoError(t, m.Delete(ctx, info.Key))
	_, err = m.URL(ctx, info.Key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Len())
}

func TestPutBase64(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	std := base64.StdEncoding.EncodeToString(pngPixel)

	tests := []struct {
		name    string
		payload string
		wantCT  string
		wantErr error
	}{
		{name: "standard", payload: std, wantCT: "image/png"},
		{name: "raw url", payload: base64.RawURLEncoding.EncodeToString(pngPixel), wantCT: "image/png"},
		{name: "data uri", payload: "data:image/webp;base64," + std, wantCT: "image/webp"},
		{name: "garbage", payload: "!!not base64!!", wantErr: ErrInvalidBase64},
		{name: "empty", payload: "", wantErr: ErrEmptyFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewMemory("https://media.local")
			info, err := PutBase64(ctx, m, tt.payload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCT, info.ContentType)
			data, _, ok := m.Object(info.Key)
			require.True(t, ok)
			assert.Equal(t, pngPixel, data)
		})
	}
}

func TestIsImageMIME(t *testing.T) {
	t.Parallel()
	assert.True(t, IsImageMIME("image/png"))
	assert.True(t, IsImageMIME("IMAGE/JPEG; q=1"))
	assert.False(t, IsImageMIME("application/pdf"))
}

type mockAPIError struct {
	code string
}

func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return "mock" }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }
func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: mock", e.code) }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key code", &mockAPIError{code: "NoSuchKey"}, ErrNotFound},
		{"access denied code", &mockAPIError{code: "AccessDenied"}, ErrAccessDenied},
		{"no such bucket code", &mockAPIError{code: "NoSuchBucket"}, ErrNotFound},
		{"typed no such key", &types.NoSuchKey{}, ErrNotFound},
		{"unmapped code", &mockAPIError{code: "SlowDown"}, ErrUploadFailed},
		{"other", errors.New("connection reset"), ErrUploadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, classify(tt.err, ErrUploadFailed), tt.want)
		})
	}
}

func TestWithAccept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory("https://media.local")

	_, err := PutBytes(ctx, m, []byte("plain text result"), WithAccept(IsImageMIME))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Zero(t, m.Len())

	info, err := PutBytes(ctx, m, pngPixel, WithAccept(IsImageMIME), WithPrefix("results"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, 1, m.Len())
}
