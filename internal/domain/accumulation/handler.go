package accumulation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/maven/accumulator/internal/platform/auth"
	"github.com/maven/accumulator/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/accumulation", auth.RequireScope(auth.ScopeReadMappings))
	read.GET("/mappings", h.ListMappings)
	read.GET("/mappings/:unique_id", h.GetMapping)
}

func (h *Handler) ListMappings(c echo.Context) error {
	var f Filter
	if v := c.QueryParam("payer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payer_id")
		}
		f.PayerID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		st, ok := ParseStatus(v)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+v)
		}
		f.Status = &st
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Mapping{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetMapping(c echo.Context) error {
	m, err := h.svc.GetByUniqueID(c.Request().Context(), c.Param("unique_id"))
	if errors.Is(err, ErrMappingNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "accumulation mapping not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}
