package access

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

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
	readGroup.GET("/me/sites", h.MySites)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.GET("/sites", h.ListSites)
	adminGroup.POST("/sites", h.CreateSite)
	adminGroup.GET("/sites/:slug", h.GetSite)
	adminGroup.GET("/sites/:slug/access", h.ListGrants)
	adminGroup.PUT("/sites/:slug/access/:user", h.Grant)
	adminGroup.DELETE("/sites/:slug/access/:user", h.Revoke)
}

func httpError(err error, status int) error {
	switch {
	case errors.Is(err, ErrSiteNotFound), errors.Is(err, ErrGrantNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSiteExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidSlug), errors.Is(err, ErrUnknownRole):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(status, err.Error())
}

func (h *Handler) CreateSite(c echo.Context) error {
	var s Site
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSite(c.Request().Context(), &s); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) ListSites(c echo.Context) error {
	items, err := h.svc.ListSites(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetSite(c echo.Context) error {
	s, err := h.svc.GetSite(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListGrants(c echo.Context) error {
	items, err := h.svc.ListGrants(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Grant(c echo.Context) error {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g := &Grant{UserID: c.Param("user"), SiteSlug: c.Param("slug"), Role: req.Role}
	if err := h.svc.Grant(c.Request().Context(), g); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) Revoke(c echo.Context) error {
	if err := h.svc.Revoke(c.Request().Context(), c.Param("user"), c.Param("slug")); err != nil {
		return httpError(err, http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MySites(c echo.Context) error {
	uid := auth.UserIDFromContext(c.Request().Context())
	if uid == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "user identity required")
	}
	items, err := h.svc.UserGrants(c.Request().Context(), uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
