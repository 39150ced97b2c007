package delivery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/herald/pkg/channel"
	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/store"
	"github.com/dmitrymomot/herald/pkg/store/memory"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	t.Parallel()

	b := delivery.ExponentialBackoff{Initial: 100 * time.Millisecond, Max: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}

	t.Run("zero value defaults", func(t *testing.T) {
		t.Parallel()
		var zero delivery.ExponentialBackoff
		assert.Equal(t, time.Second, zero.NextDelay(1))
		assert.Equal(t, 30*time.Second, zero.NextDelay(10))
	})
}

func TestEngine_DeliverDirect(t *testing.T) {
	t.Parallel()
	msg := channel.Message{Text: "Your result is ready"}

	tests := []struct {
		name         string
		handle       func(ctx context.Context, id string, call int) error
		wantStatus   store.DeliveryStatus
		wantAttempts int
		wantErr      bool
	}{
		{
			name:         "first attempt",
			wantStatus:   store.DeliverySent,
			wantAttempts: 1,
		},
		{
			name: "blocked",
			handle: func(context.Context, string, int) error {
				return channel.Permanent(errors.New("forbidden"))
			},
			wantStatus:   store.DeliveryBlocked,
			wantAttempts: 1,
			wantErr:      true,
		},
		{
			name: "transient then sent",
			handle: func(_ context.Context, _ string, call int) error {
				if call == 1 {
					return errTransient
				}
				return nil
			},
			wantStatus:   store.DeliverySent,
			wantAttempts: 2,
		},
		{
			name: "always transient",
			handle: func(context.Context, string, int) error {
				return errTransient
			},
			wantStatus:   store.DeliveryFailed,
			wantAttempts: 3,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := memory.New()
			sender := newFakeSender(tt.handle)
			res := fastEngine(st, sender).DeliverDirect(context.Background(), "42", msg)

			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantAttempts, res.Attempts)
			assert.Equal(t, tt.wantAttempts, sender.callsFor("42"))
			if tt.wantErr {
				assert.Error(t, res.Err)
			} else {
				assert.NoError(t, res.Err)
			}

			rows, err := st.ListDeliveries(context.Background(), "")
			assert.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}
