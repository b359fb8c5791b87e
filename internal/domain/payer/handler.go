package payer

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	dir *Directory
}

func NewHandler(dir *Directory) *Handler {
	return &Handler{dir: dir}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/payers", h.ListPayers)
	api.GET("/payers/:id", h.GetPayer)
}

type payerView struct {
	*Payer
	AccumulationEnabled bool         `json:"accumulation_enabled"`
	ReportFormat        ReportFormat `json:"report_format,omitempty"`
}

func toView(p *Payer) payerView {
	v := payerView{Payer: p, AccumulationEnabled: p.IsAccumulationEnabled()}
	if n, ok := p.Name(); ok {
		v.ReportFormat, _ = ReportFormatFor(n)
	}
	return v
}

func (h *Handler) ListPayers(c echo.Context) error {
	items, err := h.dir.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views := make([]payerView, 0, len(items))
	for _, p := range items {
		views = append(views, toView(p))
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) GetPayer(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.dir.Get(c.Request().Context(), id)
	if errors.Is(err, ErrPayerNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "payer not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toView(p))
}
