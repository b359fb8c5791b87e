package reconcile

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/maven/accumulator/internal/platform/auth"
)

// Handler exposes the payer response webhook.
type Handler struct {
	rec *Reconciler
}

func NewHandler(rec *Reconciler) *Handler {
	return &Handler{rec: rec}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/accumulation/responses", h.PostResponses, auth.RequireScope(auth.ScopeWriteResponses))
}

type batchRequest struct {
	Responses []Response `json:"responses"`
}

const maxBatch = 1000

func (h *Handler) PostResponses(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Responses) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "responses is required")
	}
	if len(req.Responses) > maxBatch {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too many responses in one batch")
	}
	for i := range req.Responses {
		if err := h.rec.Validate(&req.Responses[i]); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, h.rec.ApplyAll(c.Request().Context(), req.Responses))
}
