// Package httpmiddleware provides the HTTP middleware chain used by the API
// server: panic recovery, request ids, request logging, and rate limiting.
package httpmiddleware

import "net/http"

// Middleware is a function that wraps an http.Handler with additional
// behaviour.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h in order: the first middleware in the list
// becomes the outermost wrapper.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
