package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/api/middleware"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
	"github.com/blitzwolfz/aion-terminal/internal/shared/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = utils.MaxInputSize + 4096
)

// Commands is the part of the session manager reachable over the socket.
type Commands interface {
	Write(sessionID string, data []byte) error
	Resize(sessionID string, cols, rows uint16) error
}

// Handler manages WebSocket connections
type Handler struct {
	hub      *Hub
	commands Commands
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. Browser origins must be local;
// clients without an Origin header are accepted.
func NewHandler(hub *Hub, commands Commands, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:      hub,
		commands: commands,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.IsLocalOrigin(origin)
			},
		},
	}
}

// HandleConnection handles WebSocket upgrade and messages. An optional
// session_id query parameter limits events to that session.
func (h *Handler) HandleConnection(c *gin.Context) {
	filter := c.Query("session_id")
	if err := utils.ValidateID(filter, "session_id", false); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.hub.isClosed() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	cl := h.hub.register(filter)
	if cl == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return
	}
	defer h.hub.unregister(cl)

	h.hub.reply(cl, types.WSEvent{Type: types.EventSystem, Message: "connected"})

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		h.writePump(conn, cl)
	}()

	h.readPump(conn, cl)

	cl.close()
	<-pumpDone
}

func (h *Handler) readPump(conn *websocket.Conn, cl *client) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("WebSocket read error", zap.String("client_id", cl.id.String()), zap.Error(err))
			}
			return
		}

		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.hub.reply(cl, types.WSEvent{Type: types.EventError, Message: "malformed message"})
			continue
		}
		h.hub.recorder.WSMessage("in", msg.Type)

		if err := h.dispatch(cl, msg); err != nil {
			h.hub.reply(cl, types.WSEvent{Type: types.EventError, SessionID: msg.SessionID, Message: err.Error()})
		}
	}
}

func (h *Handler) dispatch(cl *client, msg types.WSMessage) error {
	switch msg.Type {
	case "input":
		if err := utils.ValidateID(msg.SessionID, "session_id", true); err != nil {
			return err
		}
		if err := utils.ValidateInput(msg.Data); err != nil {
			return err
		}
		return h.commands.Write(msg.SessionID, []byte(msg.Data))
	case "resize":
		if err := utils.ValidateID(msg.SessionID, "session_id", true); err != nil {
			return err
		}
		if msg.Cols == 0 || msg.Rows == 0 {
			return fmt.Errorf("%w: cols and rows are required", utils.ErrInvalid)
		}
		if err := utils.ValidateDimensions(msg.Cols, msg.Rows); err != nil {
			return err
		}
		return h.commands.Resize(msg.SessionID, msg.Cols, msg.Rows)
	case "ping":
		h.hub.reply(cl, types.WSEvent{Type: types.EventPong})
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// writePump is the only goroutine writing to conn.
func (h *Handler) writePump(conn *websocket.Conn, cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-cl.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}
	}
}
