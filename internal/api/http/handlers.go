package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/domain/terminal"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/monitoring"
	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// Terminals is the session manager surface the handlers drive.
type Terminals interface {
	Spawn(ctx context.Context, req types.SpawnRequest) (terminal.Summary, error)
	Write(sessionID string, data []byte) error
	Resize(sessionID string, cols, rows uint16) error
	Kill(ctx context.Context, sessionID string) error
	List() []terminal.Summary
	Get(sessionID string) (terminal.Summary, error)
	Count() int
}

// UsageReader reads persisted usage records.
type UsageReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]types.UsageRecord, error)
}

// ShellSettings exposes the shell resolution config.
type ShellSettings interface {
	Config() shell.Config
	Update(cfg shell.Config) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	terminals Terminals
	usage     UsageReader
	shells    ShellSettings
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewHandlers creates a new handler set. usage, shells and metrics may be
// nil; the routes that need them answer 503.
func NewHandlers(
	terminals Terminals,
	usage UsageReader,
	shells ShellSettings,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		terminals: terminals,
		usage:     usage,
		shells:    shells,
		metrics:   metrics,
		log:       logger,
	}
}

// Register mounts every route on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.POST("/sessions", h.SpawnSession)
	router.GET("/sessions", h.ListSessions)
	router.GET("/sessions/:id", h.GetSession)
	router.POST("/sessions/:id/input", h.WriteSession)
	router.POST("/sessions/:id/resize", h.ResizeSession)
	router.DELETE("/sessions/:id", h.KillSession)
	router.GET("/sessions/:id/usage", h.SessionUsage)

	router.GET("/settings/shell", h.GetShellSettings)
	router.PUT("/settings/shell", h.UpdateShellSettings)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "aion-terminal",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"sessions": h.terminals.Count(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, body)
}
