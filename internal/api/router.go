package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/99minutos/shipping-central/internal/api/handler"
	"github.com/99minutos/shipping-central/internal/api/middleware"
	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
	"github.com/99minutos/shipping-central/internal/core/service"

	_ "github.com/99minutos/shipping-central/docs"
)

// Deps are the constructed collaborators the router mounts.
type Deps struct {
	JWTSecret    string
	Log          zerolog.Logger
	Validator    *service.FormValidator
	Sessions     handler.WizardSessions
	Shipments    *service.ShipmentList
	Panel        *service.TrackingPanel
	Origins      ports.OriginAddressClient
	Dane         handler.DaneIndex
	Relay        handler.EventRelay
	Subscriber   ports.EventSubscriber
	Journal      ports.EventJournal
	Heartbeat    time.Duration
	Health       map[string]handler.Pinger
	ConsultRate  float64
	ConsultBurst int
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	e.Validator = handler.NewValidator(d.Validator)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("central"))

	// --- Handlers ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Health)
	wizardHandler := handler.NewWizardHandler(d.Sessions)
	shipmentHandler := handler.NewShipmentHandler(d.Shipments, d.Panel)
	originHandler := handler.NewOriginHandler(d.Origins)
	daneHandler := handler.NewDaneHandler(d.Dane)
	eventHandler := handler.NewEventHandler(d.Relay, d.Subscriber, d.Journal, d.Heartbeat, d.Log)

	// --- Operational routes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)            // liveness
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Public lookups ---
	e.GET("/v1/dane", daneHandler.Search)
	e.GET("/v1/dane/resolve", daneHandler.Resolve)

	// --- Authenticated routes ---
	v1 := e.Group("/v1",
		middleware.Auth(d.JWTSecret),
		middleware.RBAC(domain.RoleAdmin, domain.RoleBusiness),
		middleware.BusinessScope(),
	)

	wiz := v1.Group("/wizard/sessions")
	wiz.POST("", wizardHandler.Open)
	wiz.GET("/:id", wizardHandler.Get)
	wiz.DELETE("/:id", wizardHandler.Close)
	wiz.POST("/:id/shipment", wizardHandler.SubmitShipment)
	wiz.GET("/:id/quote", wizardHandler.AwaitQuote)
	wiz.POST("/:id/rate", wizardHandler.SelectRate)
	wiz.POST("/:id/contact", wizardHandler.SubmitContact)
	wiz.POST("/:id/back", wizardHandler.Back)
	wiz.POST("/:id/confirm", wizardHandler.Confirm)

	v1.GET("/shipments", shipmentHandler.List)
	v1.POST("/shipments/:id/cancel", shipmentHandler.Cancel)
	v1.GET("/shipments/:id/timeline", shipmentHandler.Timeline)
	v1.POST("/tracking/:tracking_number/consult", shipmentHandler.Consult, consultLimiter(d.ConsultRate, d.ConsultBurst))

	v1.GET("/origin-addresses", originHandler.List)
	v1.POST("/origin-addresses", originHandler.Create)
	v1.PUT("/origin-addresses/:id", originHandler.Update)
	v1.DELETE("/origin-addresses/:id", originHandler.Delete)

	v1.GET("/events/stream", eventHandler.Stream)
	v1.GET("/events/recent", eventHandler.Recent)

	return e
}

// consultLimiter throttles on-demand tracking per caller, keyed by the
// authenticated username and falling back to the client IP.
func consultLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if p, ok := c.Get(middleware.PrincipalKey).(domain.Principal); ok && p.Username != "" {
				return "user:" + p.Username, nil
			}
			return "ip:" + c.RealIP(), nil
		},
	})
}
