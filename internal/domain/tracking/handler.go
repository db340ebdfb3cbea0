package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// MaxBatch caps how many events one request may carry.
const MaxBatch = 500

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts ingestion and metrics on g, which is the public
// /api group rather than the versioned API.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/analytics", h.Ingest)
	g.GET("/analytics/metrics", h.GetMetrics)
}

// decodeEvents accepts a single event object or {"events": [...]}.
func decodeEvents(body []byte) ([]Event, error) {
	var batch struct {
		Events *[]Event `json:"events"`
	}
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, err
	}
	if batch.Events != nil {
		return *batch.Events, nil
	}
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	return []Event{e}, nil
}

func (h *Handler) Ingest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "empty body")
	}
	events, err := decodeEvents(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	if len(events) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no events")
	}
	if len(events) > MaxBatch {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too many events in one request")
	}

	res, err := h.svc.Ingest(c.Request().Context(), events)
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, res)
}

func (h *Handler) GetMetrics(c echo.Context) error {
	recent, _ := strconv.Atoi(c.QueryParam("recent"))
	if recent > 100 {
		recent = 100
	}
	return c.JSON(http.StatusOK, h.svc.Metrics(recent))
}
