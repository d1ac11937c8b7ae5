// Package main is the entry point for the aion-terminal backend.
//
// The server spawns shells on pseudo-terminals for a desktop frontend,
// streams their output over websocket, accepts input and resize commands
// over REST or websocket, and records the usage summaries AI coding
// assistants print when a run finishes.
//
// Configuration:
//   - Environment variables (12-factor), see package config
//   - CLI flags override environment variables
//   - Defaults for local use: 127.0.0.1:8000, files under the user config dir
//
// Usage:
//
//	# Serve on the default address
//	aion-terminal
//
//	# Development mode (colored logs, debug level)
//	aion-terminal --dev --port 9000
//
//	# Print usage captured for one session
//	aion-terminal usage term_01HZX5R8J3KQ4M2N6P7S9T0V1W
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
