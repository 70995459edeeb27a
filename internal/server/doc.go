// Package server hosts the Fiber HTTP service that exposes the resolver to
// local callers. It owns the middleware chain (panic recovery, request IDs)
// and the GET /get_local handler, which translates resolver errors into HTTP
// status codes. Diagnostics endpoints live in the routes subpackage so main
// can attach them with explicit dependencies.
package server
