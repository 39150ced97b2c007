package compute

import "errors"

var (
	ErrInvalidSignature = errors.New("compute: invalid callback signature")
	ErrInvalidPayload   = errors.New("compute: invalid callback payload")
	ErrMissingSecret    = errors.New("compute: callback secret is empty")
	ErrInvalidRequest   = errors.New("compute: invalid job request")
	ErrSubmitFailed     = errors.New("compute: job submission failed")
	ErrProviderRejected = errors.New("compute: provider rejected the request")
	ErrJobNotSucceeded  = errors.New("compute: job has no result to deliver")
	ErrNoStorage        = errors.New("compute: inline result received but no storage configured")
	ErrUploadResult     = errors.New("compute: failed to store inline result")
)
