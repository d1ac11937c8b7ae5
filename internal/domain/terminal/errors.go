package terminal

import "errors"

// Sentinel errors returned by Manager operations. Callers match them with
// errors.Is; the wrapped message carries the session id and cause.
var (
	ErrNotFound      = errors.New("session not found")
	ErrSessionExists = errors.New("session already exists")
	ErrSpawn         = errors.New("failed to spawn session")
	ErrIO            = errors.New("terminal i/o failed")
	ErrShutdown      = errors.New("manager is shut down")
)

// ExitCodeKilled is published when a session was killed by request or its
// wait failed.
const ExitCodeKilled int32 = -1
