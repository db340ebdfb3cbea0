package workflow

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
	readGroup.GET("/workflow-templates", h.ListTemplates)
	readGroup.GET("/workflow-templates/:id", h.GetTemplate)
	readGroup.GET("/workflows", h.ListWorkflows)
	readGroup.GET("/workflows/:id", h.GetWorkflow)
	readGroup.GET("/workflows/:id/comments", h.ListComments)
	readGroup.GET("/patients/:id/workflows", h.ListPatientWorkflows)

	writeGroup := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	writeGroup.POST("/workflows", h.StartWorkflow)
	writeGroup.PUT("/workflows/:id/steps/:step", h.UpdateStep)
	writeGroup.PUT("/workflows/:id/steps/:step/checklist/:item", h.ToggleChecklist)
	writeGroup.POST("/workflows/:id/cancel", h.CancelWorkflow)
	writeGroup.POST("/workflows/:id/comments", h.AddComment)
}

// httpError maps service errors to HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTemplateNotFound),
		errors.Is(err, ErrStepNotFound), errors.Is(err, ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrChecklistIncomplete),
		errors.Is(err, ErrInstanceClosed), errors.Is(err, ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmptyTemplate):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Templates --

func (h *Handler) ListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Templates())
}

func (h *Handler) GetTemplate(c echo.Context) error {
	t, err := h.svc.Template(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// -- Instances --

type startRequest struct {
	TemplateID string    `json:"template_id"`
	PatientID  uuid.UUID `json:"patient_id"`
}

func (h *Handler) StartWorkflow(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	inst, err := h.svc.Start(ctx, req.TemplateID, req.PatientID, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, inst)
}

func (h *Handler) GetWorkflow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inst, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (h *Handler) ListWorkflows(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	status := Status(c.QueryParam("status"))

	if pid := c.QueryParam("patient_id"); pid != "" {
		patientID, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListByPatient(ctx, patientID, status, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
	}

	items, total, err := h.svc.List(ctx, status, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

func (h *Handler) ListPatientWorkflows(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

type stepRequest struct {
	Status StepStatus `json:"status"`
}

func (h *Handler) UpdateStep(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req stepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	inst, err := h.svc.UpdateStep(ctx, id, c.Param("step"), req.Status, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

type checklistRequest struct {
	Checked bool `json:"checked"`
}

func (h *Handler) ToggleChecklist(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req checklistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	inst, err := h.svc.ToggleChecklist(ctx, id, c.Param("step"), c.Param("item"), req.Checked, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

func (h *Handler) CancelWorkflow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	inst, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// -- Comments --

func (h *Handler) AddComment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var cm Comment
	if err := c.Bind(&cm); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	cm.ID = uuid.Nil
	cm.InstanceID = id
	cm.AuthorID = auth.UserIDFromContext(ctx)
	if err := h.svc.AddComment(ctx, &cm); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, cm)
}

func (h *Handler) ListComments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListComments(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Comment{}
	}
	return c.JSON(http.StatusOK, items)
}
