package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("json with context attrs", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := newLogger(&buf, Config{Level: "info", Format: "json"})

		ctx := WithAttrs(context.Background(), slog.String("broadcast_id", "b1"))
		ctx = WithAttrs(ctx, slog.String("recipient_id", "42"))
		log.InfoContext(ctx, "sent")

		m := decodeLine(t, &buf)
		assert.Equal(t, "sent", m["msg"])
		assert.Equal(t, "b1", m["broadcast_id"])
		assert.Equal(t, "42", m["recipient_id"])
	})

	t.Run("level filters", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := newLogger(&buf, Config{Level: "warn"})

		log.Info("quiet")
		assert.Zero(t, buf.Len())
		log.Warn("loud")
		assert.Contains(t, buf.String(), "loud")
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := newLogger(&buf, Config{Format: "text"})

		log.Info("hello", slog.Int("n", 1))
		assert.True(t, strings.Contains(buf.String(), "msg=hello"))
		assert.Contains(t, buf.String(), "n=1")
	})

	t.Run("extractors run per call", func(t *testing.T) {
		t.Parallel()
		type key struct{}
		var buf bytes.Buffer
		log := newLogger(&buf, Config{}, func(ctx context.Context) (slog.Attr, bool) {
			v, ok := ctx.Value(key{}).(string)
			return slog.String("request_id", v), ok
		})

		log.InfoContext(context.WithValue(context.Background(), key{}, "req-1"), "hit")
		assert.Equal(t, "req-1", decodeLine(t, &buf)["request_id"])
	})
}

func TestWithAttrs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Equal(t, ctx, WithAttrs(ctx))
	assert.Empty(t, Attrs(ctx))

	outer := WithAttrs(ctx, slog.String("job_id", "j1"))
	inner := WithAttrs(outer, slog.Int("attempt", 2))
	assert.Len(t, Attrs(outer), 1)
	assert.Len(t, Attrs(inner), 2)
}

type failingSink struct{ slog.Handler }

func (failingSink) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestHandler_Sinks(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	h := newHandler([]slog.Handler{
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}, nil)
	log := slog.New(h).With(slog.String("component", "engine"))

	log.Info("info only")
	assert.NotZero(t, a.Len())
	assert.Zero(t, b.Len())

	log.WithGroup("batch").Error("both", slog.Int("size", 30))
	m := decodeLine(t, &b)
	assert.Equal(t, "engine", m["component"])
	assert.Equal(t, map[string]any{"size": float64(30)}, m["batch"])

	t.Run("failing sink does not block others", func(t *testing.T) {
		t.Parallel()
		var out bytes.Buffer
		sink := slog.NewJSONHandler(&out, nil)
		h := newHandler([]slog.Handler{failingSink{sink}, sink})

		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "sent", 0)
		assert.EqualError(t, h.Handle(context.Background(), rec), "sink down")
		assert.Contains(t, out.String(), `"msg":"sent"`)
	})
}
