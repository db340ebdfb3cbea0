package dosing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.ReadRoles...))
	readGroup.GET("/dosing/thresholds", h.ListThresholds)
	readGroup.POST("/dosing/evaluate", h.EvaluateValues)
	readGroup.GET("/patients/:id/dose-guidance", h.EvaluatePatient)
}

type evaluateRequest struct {
	Values map[string]float64 `json:"values"`
}

func (h *Handler) ListThresholds(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Thresholds())
}

func (h *Handler) EvaluateValues(c echo.Context) error {
	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Values) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "values are required")
	}
	return c.JSON(http.StatusOK, h.svc.Evaluate(req.Values))
}

func (h *Handler) EvaluatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.svc.EvaluatePatient(c.Request().Context(), id)
	if errors.Is(err, patient.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
