package middlewares

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/herald/internal"
)

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSONErrorHandler renders handler errors as JSON. HTTPError messages are
// client-safe and shown as is; panics, timeouts and anything else are logged
// and answered with a generic message.
func JSONErrorHandler(c internal.Context, err error) error {
	resp := ErrorResponse{RequestID: GetRequestID(c)}

	var (
		httpErr    *internal.HTTPError
		timeoutErr *TimeoutError
		panicErr   *PanicError
	)
	switch {
	case errors.As(err, &httpErr):
		resp.Error, resp.Code = httpErr.Message, httpErr.ErrorCode
		if httpErr.Code >= http.StatusInternalServerError {
			c.LogError("request failed", "status", httpErr.Code, "error", err)
		}
		return c.JSON(httpErr.Code, resp)

	case errors.As(err, &timeoutErr):
		resp.Error = "request timeout"
		return c.JSON(http.StatusGatewayTimeout, resp)

	case errors.As(err, &panicErr):
		resp.Error = http.StatusText(http.StatusInternalServerError)
		return c.JSON(http.StatusInternalServerError, resp)
	}

	c.LogError("request failed", "error", err)
	resp.Error = http.StatusText(http.StatusInternalServerError)
	return c.JSON(http.StatusInternalServerError, resp)
}
