package genomics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/platform/auth"
	"github.com/oncodash/oncodash/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.ReadRoles...))
	readGroup.GET("/genomics/reports/:id", h.GetReport)
	readGroup.GET("/genomics/reports/:id/variants", h.ListVariants)
	readGroup.GET("/genomics/reports/:id/summary", h.GetSummary)
	readGroup.GET("/patients/:id/genomics/reports", h.ListPatientReports)

	writeGroup := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	writeGroup.POST("/genomics/reports", h.CreateReport)
	writeGroup.POST("/patients/:id/genomics/mock", h.GenerateMock)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error, status int) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrInvalidSort):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(status, err.Error())
}

func (h *Handler) CreateReport(c echo.Context) error {
	var r Report
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, r)
}

func filterFromQuery(c echo.Context) (Filter, error) {
	f := Filter{
		Gene:    strings.TrimSpace(c.QueryParam("gene")),
		MinTier: Tier(strings.ToUpper(c.QueryParam("min_tier"))),
	}
	if v := c.QueryParam("significance"); v != "" {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Significance = append(f.Significance, Significance(strings.ToLower(s)))
			}
		}
	}
	if v := c.QueryParam("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "min_score must be an integer")
		}
		f.MinScore = n
	}
	if v := c.QueryParam("actionable"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "actionable must be a boolean")
		}
		f.ActionableOnly = b
	}
	if err := f.Validate(); err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return f, nil
}

func (h *Handler) ListVariants(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Interpret(c.Request().Context(), id, f, SortKey(c.QueryParam("sort")))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"variants": items, "total": len(items)})
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := h.svc.Summarize(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListPatientReports(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg).WithLinks(c.Path()))
}

func (h *Handler) GenerateMock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var seed int64
	if v := c.QueryParam("seed"); v != "" {
		if seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "seed must be an integer")
		}
	}
	r, err := h.svc.GenerateMock(c.Request().Context(), id, seed)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, r)
}
