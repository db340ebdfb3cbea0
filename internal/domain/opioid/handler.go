package opioid

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
	readGroup.GET("/opioid/factors", h.ListFactors)
	readGroup.POST("/opioid/assess", h.AssessAdHoc)
	readGroup.POST("/opioid/mme", h.CalculateMME)
	readGroup.GET("/patients/:id/opioid-risk", h.AssessPatient)
}

type assessRequest struct {
	Factors []string `json:"factors"`
	Doses   []Dose   `json:"doses"`
}

type mmeRequest struct {
	Doses []Dose `json:"doses"`
}

func (h *Handler) ListFactors(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Factors())
}

func (h *Handler) AssessAdHoc(c echo.Context) error {
	var req assessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.AssessAdHoc(req.Factors, req.Doses)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CalculateMME(c echo.Context) error {
	var req mmeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Doses) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "doses are required")
	}
	return c.JSON(http.StatusOK, h.svc.MME(req.Doses))
}

func (h *Handler) AssessPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.AssessPatient(c.Request().Context(), id)
	if errors.Is(err, patient.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
