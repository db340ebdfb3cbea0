package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/patients/:id", h.GetPatient)
	readGroup.GET("/patients/:id/labs/latest", h.GetLatestLabs)
	readGroup.GET("/selection", h.GetSelection)
	readGroup.PUT("/selection", h.SelectPatient)
	readGroup.DELETE("/selection/:id", h.DeselectPatient)
	readGroup.GET("/selection/recent", h.GetRecent)

	writeGroup := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	writeGroup.POST("/patients", h.CreatePatient)
	writeGroup.POST("/patients/:id/actions", h.DispatchAction)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/patients/:id", h.DeletePatient)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func notFoundOr(err error, status int) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(status, err.Error())
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg).WithLinks(c.Path()))
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DispatchAction(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var a Action
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Dispatch(c.Request().Context(), id, a)
	if err != nil {
		return notFoundOr(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetLatestLabs(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, LatestLabs(p))
}

// -- Selection --

type selectRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

func (h *Handler) SelectPatient(c echo.Context) error {
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	ctx := c.Request().Context()
	sel, err := h.svc.Select(ctx, auth.UserIDFromContext(ctx), req.PatientID)
	if err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, sel)
}

func (h *Handler) DeselectPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sel, err := h.svc.Deselect(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sel)
}

func (h *Handler) GetSelection(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.Selected(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return notFoundOr(err, http.StatusInternalServerError)
	}
	if p == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetRecent(c echo.Context) error {
	ctx := c.Request().Context()
	recent, err := h.svc.Recent(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"recent": recent})
}
