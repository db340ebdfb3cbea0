package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/oncodash/oncodash/internal/config"
	"github.com/oncodash/oncodash/internal/domain/access"
	"github.com/oncodash/oncodash/internal/domain/dashboard"
	"github.com/oncodash/oncodash/internal/domain/dosing"
	"github.com/oncodash/oncodash/internal/domain/drug"
	"github.com/oncodash/oncodash/internal/domain/genomics"
	"github.com/oncodash/oncodash/internal/domain/opioid"
	"github.com/oncodash/oncodash/internal/domain/patient"
	"github.com/oncodash/oncodash/internal/domain/tracking"
	"github.com/oncodash/oncodash/internal/domain/tumorboard"
	"github.com/oncodash/oncodash/internal/domain/workflow"
	"github.com/oncodash/oncodash/internal/platform/analytics"
	"github.com/oncodash/oncodash/internal/platform/auth"
	"github.com/oncodash/oncodash/internal/platform/db"
	"github.com/oncodash/oncodash/internal/platform/middleware"
	"github.com/oncodash/oncodash/internal/platform/realtime"
	"github.com/oncodash/oncodash/internal/platform/rulebook"
)

const (
	version         = "0.1.0"
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	usageBuffer     = 10000
	trackerCapacity = 1000
)

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Clinical rules
	book, err := rulebook.Open(cfg.RulesFile)
	if err != nil {
		return err
	}
	if err := book.Watch(ctx, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := realtime.NewHub()
	defer hub.Close()

	batcher := tracking.NewBatcher(tracking.NewPGSink(pool), tracking.BatcherConfig{
		Buffer:        cfg.AnalyticsBuffer,
		FlushInterval: cfg.AnalyticsFlushInterval,
		Registerer:    reg,
	}, logger)
	go batcher.Run(ctx)

	e := newServer(cfg, pool, book, hub, batcher, reg, logger)

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := batcher.Close(sctx); err != nil {
		logger.Error().Err(err).Msg("analytics queue not drained")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the router and wires every domain onto it.
func newServer(cfg *config.Config, pool *pgxpool.Pool, book *rulebook.Book, hub *realtime.Hub,
	queue tracking.Queue, reg *prometheus.Registry, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	usage := analytics.NewUsageTracker(usageBuffer)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", db.SiteHeader},
	}))
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(analytics.UsageMiddleware(usage, analytics.NewHTTPMetrics(reg)))
	e.Use(authMiddleware(cfg))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	api := e.Group("/api", middleware.RateLimit(rateLimitCfg))

	// Client analytics and request usage
	tracking.NewHandler(tracking.NewService(tracking.NewTracker(trackerCapacity), queue)).RegisterRoutes(api)
	analytics.NewUsageHandler(usage).RegisterRoutes(api.Group("", auth.RequireRole(auth.RoleAdmin)))

	// Sites and grants live in the shared schema only.
	accessSvc := newAccessService(pool)
	access.NewHandler(accessSvc).RegisterRoutes(api.Group("/v1"))

	// Everything else is scoped to the caller's active site.
	v1 := api.Group("/v1", db.SiteMiddleware(pool, cfg.DefaultSite), access.RequireSiteAccess(accessSvc))

	patientSvc := patient.NewService(patient.NewRepoPG(pool), patient.NewSelectionRepoPG(pool), hub)
	dosingSvc := dosing.NewService(book, patientSvc)
	opioidSvc := opioid.NewService(book, patientSvc)
	workflowSvc := workflow.NewService(book, workflow.NewInstanceRepoPG(pool), hub)
	genomicsSvc := genomics.NewService(genomics.NewReportRepoPG(pool), patientSvc, hub)
	boardSvc := tumorboard.NewService(tumorboard.NewRepoPG(pool), patientSvc, hub)
	drugSvc := drug.NewService(drug.NewRepoPG(pool), drug.NewComparisonRepoPG(pool), drug.NewPopularityRepoPG(pool), patientSvc)
	dashboardSvc := dashboard.NewService(dashboard.Sources{
		Fork: func(ctx context.Context) (context.Context, func(), error) {
			return db.ForkSite(ctx, pool)
		},
		Patients:   patientSvc,
		Dosing:     dosingSvc,
		Opioid:     opioidSvc,
		Workflows:  workflowSvc,
		Genomics:   genomicsSvc,
		TumorBoard: boardSvc,
	})

	patient.NewHandler(patientSvc).RegisterRoutes(v1)
	dosing.NewHandler(dosingSvc).RegisterRoutes(v1)
	opioid.NewHandler(opioidSvc).RegisterRoutes(v1)
	workflow.NewHandler(workflowSvc).RegisterRoutes(v1)
	genomics.NewHandler(genomicsSvc).RegisterRoutes(v1)
	tumorboard.NewHandler(boardSvc).RegisterRoutes(v1)
	drug.NewHandler(drugSvc).RegisterRoutes(v1)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(v1)

	// Realtime collaboration. The socket outlives any request, so it gets
	// the site without a bound connection.
	realtime.NewHandler(hub, cfg.DefaultSite, cfg.CORSOrigins).
		RegisterRoutes(e, siteOnly(cfg.DefaultSite), access.RequireSiteAccess(accessSvc))

	return e
}

// authMiddleware verifies hosted-auth tokens. In development requests
// without a token pass as the dev admin.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	verify := auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer(),
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.JWKSURL(),
		SigningKey: []byte(cfg.SupabaseJWTSecret),
		Skipper:    auth.AuthSkipper,
	})
	if cfg.IsDev() {
		return skipPublic(auth.DevAuthMiddleware(verify))
	}
	return verify
}

func skipPublic(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := mw(next)
		return func(c echo.Context) error {
			if auth.AuthSkipper(c) {
				return next(c)
			}
			return wrapped(c)
		}
	}
}

// siteOnly resolves the active site onto the request context without
// holding a database connection.
func siteOnly(defaultSite string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			siteID := db.ExtractSiteID(c, defaultSite)
			if !db.ValidSiteID(siteID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid site identifier")
			}
			c.SetRequest(c.Request().WithContext(db.WithSite(c.Request().Context(), siteID)))
			c.Set("site_id", siteID)
			return next(c)
		}
	}
}
