package internal

// Handler declares routes on a router.
//
//	type CallbackHandler struct {
//	    jobs *compute.Dispatcher
//	}
//
//	func (h *CallbackHandler) Routes(r herald.Router) {
//	    r.POST("/job-callback", h.callback)
//	}
type Handler interface {
	Routes(r Router)
}

// HandlerFunc is the signature for route handlers.
// Returning a non-nil error hands it to the app's error handler.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc to add cross-cutting concerns. It can
// inspect the request, short-circuit with an error, or wrap the response.
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler handles errors returned from handlers.
type ErrorHandler func(Context, error) error
