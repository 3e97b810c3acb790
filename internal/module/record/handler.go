package record

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/goboot/internal/cast"
	"github.com/simp-lee/goboot/internal/domain"
	"github.com/simp-lee/goboot/internal/model"
	"github.com/simp-lee/goboot/internal/pkg"
	"github.com/simp-lee/goboot/internal/query"
)

// Handler serves the generic record API over a catalog.
type Handler struct {
	catalog *Catalog
	db      *gorm.DB
	logger  *slog.Logger
	codec   model.Codec
}

// NewHandler creates a Handler. Datetimes are normalised with codec.
func NewHandler(catalog *Catalog, db *gorm.DB, logger *slog.Logger, codec model.Codec) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{catalog: catalog, db: db, logger: logger, codec: codec}
}

// TypeInfo describes one exposed type.
type TypeInfo struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	Includes []string `json:"includes"`
}

// Types handles GET /api/v1/records.
func (h *Handler) Types(c *gin.Context) (any, error) {
	types := h.catalog.Types()
	out := make([]TypeInfo, 0, len(types))
	for _, t := range types {
		out = append(out, TypeInfo{Name: t.Name(), Columns: t.Columns(), Includes: h.catalog.Includes(t)})
	}
	return out, nil
}

// List handles GET /api/v1/records/:type. With a fields parameter only id
// and the named columns are returned.
func (h *Handler) List(c *gin.Context) (any, error) {
	t, err := h.lookup(c)
	if err != nil {
		return nil, err
	}
	q, err := pkg.ParseListQuery(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()
	gw := h.gateway(t)

	if fields := c.Query("fields"); fields != "" {
		var page *query.Page[map[string]any]
		err := pkg.Scoped(ctx, h.db, h.logger, func(tx *gorm.DB) error {
			var err error
			page, err = gw.SelectPage(ctx, tx, cast.StrCSV(fields), q.Filters, q.Start, q.Count, q.OrderBy)
			return err
		})
		if err != nil {
			return nil, err
		}
		return page.ToMap(func(row map[string]any) (any, error) { return row, nil })
	}

	var page *query.Page[*model.Record]
	err = pkg.Scoped(ctx, h.db, h.logger, func(tx *gorm.DB) error {
		var err error
		page, err = gw.GetPage(ctx, tx, q.Filters, q.Start, q.Count, q.OrderBy, q.Include)
		if err != nil {
			return err
		}
		return h.catalog.expand(ctx, tx, h.codec, t, page.Items, q.Include)
	})
	if err != nil {
		return nil, err
	}
	return page.ToMap(h.serialize)
}

// Get handles GET /api/v1/records/:type/:id.
func (h *Handler) Get(c *gin.Context) (any, error) {
	t, err := h.lookup(c)
	if err != nil {
		return nil, err
	}
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	include := cast.StrCSV(c.Query("include"))
	ctx := c.Request.Context()

	var rec *model.Record
	err = pkg.Scoped(ctx, h.db, h.logger, func(tx *gorm.DB) error {
		var err error
		rec, err = h.gateway(t).Get(ctx, tx, id, include)
		if err != nil {
			return err
		}
		return h.catalog.expand(ctx, tx, h.codec, t, []*model.Record{rec}, include)
	})
	if err != nil {
		return nil, err
	}
	return h.serialize(rec)
}

// Create handles POST /api/v1/records/:type. The body is the JSON form of
// a record. Only columns are stored and the stored row is returned.
func (h *Handler) Create(c *gin.Context) (any, error) {
	t, err := h.lookup(c)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "request body must be a JSON object", err)
	}
	rec, err := h.codec.Deserialize(body, t)
	if err != nil {
		return nil, err
	}
	rec.Unset("id")
	h.stamp(rec, time.Now())

	ctx := c.Request.Context()
	var stored *model.Record
	err = pkg.Scoped(ctx, h.db, h.logger, func(tx *gorm.DB) error {
		gw := h.gateway(t)
		if err := gw.Create(ctx, tx, rec); err != nil {
			return err
		}
		id, _ := rec.ID()
		var err error
		stored, err = gw.Get(ctx, tx, id, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	out, err := h.serialize(stored)
	if err != nil {
		return nil, err
	}
	pkg.Created(c, out)
	return nil, nil
}

// Delete handles DELETE /api/v1/records/:type/:id.
func (h *Handler) Delete(c *gin.Context) (any, error) {
	t, err := h.lookup(c)
	if err != nil {
		return nil, err
	}
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()
	return nil, pkg.Scoped(ctx, h.db, h.logger, func(tx *gorm.DB) error {
		return h.gateway(t).Delete(ctx, tx, id)
	})
}

func (h *Handler) lookup(c *gin.Context) (*model.Type, error) {
	name := c.Param("type")
	t, ok := h.catalog.Lookup(name)
	if !ok || !t.DBBacked() {
		return nil, domain.NewAppError(domain.CodeNotFound, fmt.Sprintf("unknown record type '%s'", name), nil)
	}
	return t, nil
}

func (h *Handler) gateway(t *model.Type) *query.Gateway {
	return &query.Gateway{Type: t, Codec: h.codec}
}

func (h *Handler) serialize(rec *model.Record) (any, error) {
	return h.codec.Serialize(rec)
}

// stamp fills unset created_at and updated_at datetime columns.
func (h *Handler) stamp(rec *model.Record, now time.Time) {
	structure := rec.Type().Structure()
	for _, col := range []string{"created_at", "updated_at"} {
		p, ok := structure[col].(model.Primitive)
		if !ok || p.Kind != cast.DateTime {
			continue
		}
		if v, set := rec.Get(col); !set || v == nil {
			rec.Set(col, now.Truncate(time.Second))
		}
	}
}

func parseID(c *gin.Context) (int64, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		if err == nil {
			err = errors.New("must be positive")
		}
		return 0, domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid id '%s'", raw), err)
	}
	return id, nil
}
