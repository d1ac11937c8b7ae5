// Package middleware provides the HTTP middleware stack for the terminal
// backend.
//
// Middleware stack includes:
//   - CORS: loopback and tauri:// origins by default, explicit list optional
//   - RateLimit: Per-IP token bucket rate limiting with idle cleanup
//   - RequestLogger: X-Request-ID tagging and zap request logs
//
// Example Usage:
//
//	router.Use(middleware.RequestLogger(logger.Component("http")))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
