package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/herald/internal"
	"github.com/dmitrymomot/herald/middlewares"
)

func TestRecover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      []middlewares.RecoverOption
		handler   internal.HandlerFunc
		wantPanic any
		wantErr   error
		wantStack bool
	}{
		{
			name:    "no panic",
			handler: func(internal.Context) error { return nil },
		},
		{
			name:    "error passes through",
			handler: func(internal.Context) error { return errStub },
			wantErr: errStub,
		},
		{
			name:      "string panic with stack",
			handler:   func(internal.Context) error { panic("nil recipient") },
			wantPanic: "nil recipient",
			wantStack: true,
		},
		{
			name:      "error panic without stack",
			opts:      []middlewares.RecoverOption{middlewares.WithStackSize(0)},
			handler:   func(internal.Context) error { panic(errStub) },
			wantPanic: errStub,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := newTestContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/broadcasts", nil))

			err := middlewares.Recover(tt.opts...)(tt.handler)(ctx)

			if tt.wantPanic == nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Empty(t, ctx.Logs())
				return
			}
			assert.Equal(t, []string{"ERROR handler panicked"}, ctx.Logs())
			var pe *middlewares.PanicError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantPanic, pe.Value)
			assert.Equal(t, tt.wantStack, len(pe.Stack) > 0)
			assert.Contains(t, pe.Error(), "panic: ")
		})
	}
}

var errStub = errors.New("stub")
