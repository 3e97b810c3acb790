package record

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/goboot/internal/pkg"
)

// Module exposes the catalog under /records.
type Module struct {
	handler *Handler
	logger  *slog.Logger
}

// NewModule creates a Module. Panics if h is nil.
func NewModule(h *Handler, logger *slog.Logger) *Module {
	if h == nil {
		panic("record.NewModule: handler must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{handler: h, logger: logger}
}

// RegisterRoutes registers the record API routes.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/records")
	g.GET("", pkg.Handle(m.logger, m.handler.Types))
	g.GET("/:type", pkg.Handle(m.logger, m.handler.List))
	g.POST("/:type", pkg.Handle(m.logger, m.handler.Create))
	g.GET("/:type/:id", pkg.Handle(m.logger, m.handler.Get))
	g.DELETE("/:type/:id", pkg.Handle(m.logger, m.handler.Delete))
}
