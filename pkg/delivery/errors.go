package delivery

import "errors"

var (
	ErrBroadcastBusy     = errors.New("delivery: broadcast is still sending")
	ErrBroadcastInactive = errors.New("delivery: broadcast is not sending")
	ErrLeaseLost         = errors.New("delivery: broadcast claimed by another pass")
	ErrRetryInProgress   = errors.New("delivery: retry of failed deliveries already running")
	ErrRateLimited       = errors.New("delivery: rate limit exceeded")
	ErrEmptyContent      = errors.New("delivery: broadcast has no content")
	ErrResolveRecipients = errors.New("delivery: failed to resolve recipients")
	ErrRenderContent     = errors.New("delivery: failed to render content")
)
