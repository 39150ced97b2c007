package internal

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
)

// Router declares routes. Per-route middleware runs inside group middleware
// added with Use; the first listed runs first.
type Router interface {
	GET(path string, h HandlerFunc, mw ...Middleware)
	POST(path string, h HandlerFunc, mw ...Middleware)
	DELETE(path string, h HandlerFunc, mw ...Middleware)
	Handle(method, path string, h HandlerFunc, mw ...Middleware)

	// Group starts a sub-router sharing the current prefix; Use inside it
	// does not leak to sibling routes.
	Group(fn func(r Router))
	// Route starts a sub-router under pattern.
	Route(pattern string, fn func(r Router))
	Use(mw ...Middleware)
}

type router struct {
	mux chi.Router
	app *App
}

func (r *router) GET(path string, h HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, path, h, mw...)
}

func (r *router) POST(path string, h HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, path, h, mw...)
}

func (r *router) DELETE(path string, h HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodDelete, path, h, mw...)
}

func (r *router) Handle(method, path string, h HandlerFunc, mw ...Middleware) {
	// Backward leaves the caller's slice untouched.
	for _, m := range slices.Backward(mw) {
		h = m(h)
	}
	r.mux.Method(method, path, r.app.serve(h))
}

func (r *router) Group(fn func(Router)) {
	r.mux.Group(func(mux chi.Router) { fn(&router{mux: mux, app: r.app}) })
}

func (r *router) Route(pattern string, fn func(Router)) {
	r.mux.Route(pattern, func(mux chi.Router) { fn(&router{mux: mux, app: r.app}) })
}

func (r *router) Use(mw ...Middleware) {
	for _, m := range mw {
		r.mux.Use(r.app.chiMiddleware(m))
	}
}
