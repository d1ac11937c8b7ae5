package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
	"github.com/blitzwolfz/aion-terminal/internal/shared/id"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
	"github.com/blitzwolfz/aion-terminal/internal/shared/utils"
)

// SpawnSession opens a new terminal session. The body is optional; an
// omitted session_id is generated.
func (h *Handlers) SpawnSession(c *gin.Context) {
	var req types.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	if req.SessionID == "" {
		req.SessionID = id.NewSessionID().String()
	}
	if err := validateSpawn(req); err != nil {
		badRequest(c, err)
		return
	}

	summary, err := h.terminals.Spawn(c.Request.Context(), req)
	if err != nil {
		h.log.Warn("Spawn failed", zap.String("session_id", req.SessionID), zap.Error(err))
		// a bad override is the caller's mistake, a missing default shell is ours
		if req.Shell != "" && errors.Is(err, shell.ErrResolve) {
			badRequest(c, err)
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, summary)
}

func validateSpawn(req types.SpawnRequest) error {
	if err := utils.ValidateID(req.SessionID, "session_id", true); err != nil {
		return err
	}
	if err := utils.ValidatePath(req.Shell, "shell"); err != nil {
		return err
	}
	if err := utils.ValidatePath(req.Cwd, "cwd"); err != nil {
		return err
	}
	if err := utils.ValidateEnv(req.Env); err != nil {
		return err
	}
	return utils.ValidateDimensions(req.Cols, req.Rows)
}

// ListSessions lists live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.terminals.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session summary
func (h *Handlers) GetSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	summary, err := h.terminals.Get(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// WriteSession forwards input bytes to the shell
func (h *Handlers) WriteSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	var req types.InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateInput(req.Data); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.terminals.Write(sessionID, []byte(req.Data)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": sessionID})
}

// ResizeSession changes the terminal dimensions
func (h *Handlers) ResizeSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	var req types.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateDimensions(req.Cols, req.Rows); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.terminals.Resize(sessionID, req.Cols, req.Rows); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": sessionID})
}

// KillSession terminates a session
func (h *Handlers) KillSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	if err := h.terminals.Kill(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": sessionID})
}

// SessionUsage returns the usage records captured for a session, live or not
func (h *Handlers) SessionUsage(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	if h.usage == nil {
		respondError(c, errUnavailable)
		return
	}

	records, err := h.usage.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []types.UsageRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"records":    records,
	})
}

func sessionParam(c *gin.Context) (string, bool) {
	sessionID := c.Param("id")
	if err := utils.ValidateID(sessionID, "session_id", true); err != nil {
		badRequest(c, err)
		return "", false
	}
	return sessionID, true
}
