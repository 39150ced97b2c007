package redis

import (
	"context"
	"io"
)

// Shutdown closes client when the server stops. Pass it to herald.ShutdownHook.
func Shutdown(client io.Closer) func(context.Context) error {
	return func(context.Context) error { return client.Close() }
}
