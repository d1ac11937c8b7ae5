package types

// SpawnRequest represents a request to open a new terminal session
type SpawnRequest struct {
	SessionID string            `json:"session_id"`
	Shell     string            `json:"shell,omitempty"`
	Cwd       string            `json:"cwd,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Cols      uint16            `json:"cols"`
	Rows      uint16            `json:"rows"`
}

// InputRequest carries keystrokes or pasted text for a session
type InputRequest struct {
	Data string `json:"data"`
}

// ResizeRequest carries new terminal dimensions
type ResizeRequest struct {
	Cols uint16 `json:"cols" binding:"required,min=1"`
	Rows uint16 `json:"rows" binding:"required,min=1"`
}

// WSMessage represents an inbound WebSocket command
type WSMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      uint16 `json:"cols,omitempty"`
	Rows      uint16 `json:"rows,omitempty"`
}

// WSEvent represents an outbound WebSocket frame
type WSEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      []byte `json:"data,omitempty"`
	Inserts   int    `json:"inserts,omitempty"`
	Code      *int32 `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Event types published to presentation clients
const (
	EventOutput        = "pty:data"
	EventTokenCaptured = "token:captured"
	EventExit          = "pty:exit"
	EventError         = "error"
	EventPong          = "pong"
	EventSystem        = "system"
)
