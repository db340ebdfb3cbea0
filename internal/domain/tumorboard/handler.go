package tumorboard

import (
	"context"
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
	readGroup.GET("/tumor-boards", h.ListMeetings)
	readGroup.GET("/tumor-boards/upcoming", h.ListUpcoming)
	readGroup.GET("/tumor-boards/:id", h.GetMeeting)
	readGroup.GET("/patients/:id/tumor-board-cases", h.ListPatientCases)

	writeGroup := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	writeGroup.POST("/tumor-boards", h.ScheduleMeeting)
	writeGroup.POST("/tumor-boards/:id/start", h.StartMeeting)
	writeGroup.POST("/tumor-boards/:id/complete", h.CompleteMeeting)
	writeGroup.POST("/tumor-boards/:id/cancel", h.CancelMeeting)
	writeGroup.POST("/tumor-boards/:id/cases", h.AddCase)
	writeGroup.PUT("/tumor-board-cases/:id/decision", h.RecordDecision)
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
		return echo.NewHTTPError(http.StatusNotFound, "meeting not found")
	case errors.Is(err, ErrCaseNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrMeetingClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(status, err.Error())
}

func (h *Handler) ScheduleMeeting(c echo.Context) error {
	var m Meeting
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Schedule(c.Request().Context(), &m); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMeeting(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMeetings(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg).WithLinks(c.Path()))
}

func (h *Handler) ListUpcoming(c echo.Context) error {
	limit := pagination.DefaultLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		if n < pagination.MaxLimit {
			limit = n
		} else {
			limit = pagination.MaxLimit
		}
	}
	items, err := h.svc.Upcoming(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Meeting{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPatientCases(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.UpcomingForPatient(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) statusChange(c echo.Context, fn func(context.Context, uuid.UUID) (*Meeting, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := fn(c.Request().Context(), id)
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) StartMeeting(c echo.Context) error    { return h.statusChange(c, h.svc.Start) }
func (h *Handler) CompleteMeeting(c echo.Context) error { return h.statusChange(c, h.svc.Complete) }
func (h *Handler) CancelMeeting(c echo.Context) error   { return h.statusChange(c, h.svc.Cancel) }

func (h *Handler) AddCase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var tc Case
	if err := c.Bind(&tc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tc.MeetingID = id
	if err := h.svc.AddCase(c.Request().Context(), &tc); err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusCreated, tc)
}

func (h *Handler) RecordDecision(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var d Decision
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tc, err := h.svc.RecordDecision(c.Request().Context(), id, d)
	if err != nil {
		return httpError(err, http.StatusBadRequest)
	}
	return c.JSON(http.StatusOK, tc)
}
