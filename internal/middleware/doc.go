// Package middleware provides HTTP middleware for the session API.
//
// Currently this is per-IP request rate limiting backed by token buckets,
// applied in front of every route when enabled in configuration.
package middleware
