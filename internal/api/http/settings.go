package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
)

// GetShellSettings returns the current shell resolution config
func (h *Handlers) GetShellSettings(c *gin.Context) {
	if h.shells == nil {
		respondError(c, errUnavailable)
		return
	}
	c.JSON(http.StatusOK, h.shells.Config())
}

// UpdateShellSettings replaces and persists the shell resolution config.
// Running sessions keep the shell they were spawned with.
func (h *Handlers) UpdateShellSettings(c *gin.Context) {
	if h.shells == nil {
		respondError(c, errUnavailable)
		return
	}

	var cfg shell.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.shells.Update(cfg); err != nil {
		respondError(c, err)
		return
	}

	h.log.Info("Shell settings updated",
		zap.String("default_shell", cfg.DefaultShell),
		zap.Bool("login_shell", cfg.LoginShell))
	c.JSON(http.StatusOK, h.shells.Config())
}
