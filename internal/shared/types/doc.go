// Package types provides data structures shared between the terminal core,
// the persistence store and the presentation transports.
//
// Core Types:
//   - UsageRecord: one scraped cost/token/duration report
//   - SpawnRequest, InputRequest, ResizeRequest: command payloads
//   - WSMessage, WSEvent: websocket frames
package types
