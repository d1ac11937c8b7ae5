// Package config provides 12-factor configuration management for the
// terminal backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Terminal: PTY defaults, kill grace period, relay drain timeout
//   - Shell: Shell resolution config file and hot reload
//   - Store: Usage database location
//   - Scraper: Agent label and persistence timeout
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.ResolvePaths(); err != nil {
//	    return err
//	}
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - TERMINAL_DEFAULT_COLS, TERMINAL_DEFAULT_ROWS, TERMINAL_KILL_GRACE,
//     TERMINAL_DRAIN_TIMEOUT, TERMINAL_READ_BUFFER
//   - SHELL_CONFIG_PATH, SHELL_CONFIG_WATCH
//   - USAGE_DB_PATH
//   - SCRAPER_AGENT, SCRAPER_PERSIST_TIMEOUT
package config
