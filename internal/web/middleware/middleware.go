// Package middleware holds the HTTP middleware shared by the catalog API.
package middleware

import "net/http"

// Middleware wraps an http.Handler. Every constructor here returns one so
// they can be passed straight to chi's Router.Use.
type Middleware func(http.Handler) http.Handler
