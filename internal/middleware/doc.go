// Package middleware provides HTTP middleware and resilience helpers
// shared by keygate's listeners and identity stores.
package middleware
