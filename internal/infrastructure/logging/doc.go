// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr so stdout stays free when the backend is embedded in a
// desktop shell that talks to it over pipes.
//
// Example Usage:
//
//	logger := logging.FromLevel("info", false)
//	log := logger.Component("terminal")
//	log.Info("Session spawned", zap.String("session_id", id), zap.Int("pid", pid))
package logging
