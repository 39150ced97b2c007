package job

import (
	"context"
	"errors"
)

// Healthcheck fails while m is nil or not running, or when its database is
// unreachable. River shares that pool, so a ping covers both.
func Healthcheck(m *Manager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		switch {
		case m == nil:
			return errors.Join(ErrHealthcheckFailed, ErrNotConfigured)
		case !m.Running():
			return errors.Join(ErrHealthcheckFailed, ErrNotStarted)
		}
		if err := m.pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
