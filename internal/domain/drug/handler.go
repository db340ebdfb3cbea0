package drug

import (
	"errors"
	"net/http"
	"strconv"

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
	readGroup.GET("/drugs", h.SearchDrugs)
	readGroup.GET("/drugs/popular", h.PopularDrugs)
	readGroup.GET("/drugs/:rxcui", h.GetDrug)
	readGroup.GET("/drugs/:rxcui/enhanced", h.GetEnhanced)
	readGroup.GET("/comparison", h.GetComparison)
	readGroup.POST("/comparison", h.AddToComparison)
	readGroup.DELETE("/comparison", h.ClearComparison)
	readGroup.DELETE("/comparison/:rxcui", h.RemoveFromComparison)
	readGroup.GET("/comparison/scores", h.Compare)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.PUT("/drugs/:rxcui", h.UpsertDrug)
}

func httpError(err error, status int) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "drug not found")
	case errors.Is(err, ErrNoInsights):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(status, err.Error())
}

func userID(c echo.Context) (string, error) {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "user identity required")
	}
	return uid, nil
}

func (h *Handler) SearchDrugs(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), c.QueryParam("class"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg).WithLinks(c.Path()))
}

func (h *Handler) GetDrug(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("rxcui"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetEnhanced(c echo.Context) error {
	ins, err := h.svc.GetEnhanced(c.Request().Context(), c.Param("rxcui"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, ins)
}

func (h *Handler) UpsertDrug(c echo.Context) error {
	var d Drug
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.RxCUI = c.Param("rxcui")
	if err := h.svc.Upsert(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) PopularDrugs(c echo.Context) error {
	n, _ := strconv.Atoi(c.QueryParam("limit"))
	if n > pagination.MaxLimit {
		n = pagination.MaxLimit
	}
	items, err := h.svc.Popular(c.Request().Context(), n)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetComparison(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ComparisonList(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rxcuis": list})
}

func (h *Handler) AddToComparison(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req struct {
		RxCUI string `json:"rxcui"`
	}
	if err := c.Bind(&req); err != nil || req.RxCUI == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "rxcui is required")
	}
	list, err := h.svc.AddToComparison(c.Request().Context(), uid, req.RxCUI)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rxcuis": list})
}

func (h *Handler) RemoveFromComparison(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	list, err := h.svc.RemoveFromComparison(c.Request().Context(), uid, c.Param("rxcui"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"rxcuis": list})
}

func (h *Handler) ClearComparison(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ClearComparison(c.Request().Context(), uid); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Compare(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var pid *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		pid = &id
	}
	items, err := h.svc.Compare(c.Request().Context(), uid, pid)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, items)
}
