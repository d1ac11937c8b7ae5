// Package store is the SQLite-backed append store for usage records.
//
// The token_usage table is created on open. Timestamps are stored as
// RFC 3339 text in UTC so lexical order matches time order.
package store
