package channel

import "errors"

var (
	// ErrPermanent marks a recipient that must not be retried.
	ErrPermanent = errors.New("channel: recipient permanently unreachable")

	ErrInvalidRecipient = errors.New("channel: invalid recipient id")
	ErrEmptyMessage     = errors.New("channel: empty message")
	ErrFloodControl     = errors.New("channel: flood control")
	ErrMissingToken     = errors.New("channel: bot token is empty")
)

// Permanent wraps err so that errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	if err == nil {
		return ErrPermanent
	}
	return errors.Join(ErrPermanent, err)
}

// IsPermanent reports whether err marks a permanently unreachable recipient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
