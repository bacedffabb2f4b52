package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"roadbook/internal/health"
	"roadbook/internal/token"
)

// RouterConfig bundles the handlers and cross-cutting pieces the router
// wires together.
type RouterConfig struct {
	Drivers  *DriverHandler
	Workdays *WorkdayHandler
	Updates  *UpdateHandler
	Issuer   *token.Issuer
	Checkers []health.Checker
	Logger   *slog.Logger

	// AuthRPS bounds unauthenticated credential endpoints per client IP.
	AuthRPS   rate.Limit
	AuthBurst int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(ParseDevice)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		results, healthy := health.Status(req.Context(), cfg.Checkers...)
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, results)
	})

	r.Route("/authentication", func(r chi.Router) {
		r.Use(RateLimit(cfg.AuthRPS, cfg.AuthBurst))
		r.Post("/signup", cfg.Drivers.handleSignup)
		r.Post("/login", cfg.Drivers.handleLogin)
		r.Post("/verify", cfg.Drivers.handleVerify)
		r.Post("/refresh", cfg.Drivers.handleRefresh)
		r.Delete("/refresh", cfg.Drivers.handleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Issuer))

		r.Route("/drivers/me", func(r chi.Router) {
			r.Get("/", cfg.Drivers.handleMe)
			r.Delete("/", cfg.Drivers.handleDeleteMe)
			r.Get("/rest-periods", cfg.Drivers.handleGetRestPeriods)
			r.Put("/rest-periods", cfg.Drivers.handleSetRestPeriods)
			r.Delete("/rest-periods", cfg.Drivers.handleDeleteRestPeriods)
		})

		r.Route("/workdays", func(r chi.Router) {
			r.Get("/", cfg.Workdays.handlePeriod)
			r.Post("/", cfg.Workdays.handleCreate)
			r.Put("/", cfg.Workdays.handleUpdate)
			r.Get("/month", cfg.Workdays.handleMonth)
			r.Delete("/{date}", cfg.Workdays.handleDelete)
			r.Get("/garbage", cfg.Workdays.handleGarbageList)
			r.Delete("/garbage/{date}", cfg.Workdays.handleRestore)
			r.Get("/documents/year", cfg.Workdays.handleDocumentYears)
			r.Get("/documents/{year}", cfg.Workdays.handleDocumentMonths)
			r.Get("/documents/{year}/{month}", cfg.Workdays.handleMonthlyDocument)
		})

		r.Get("/updates", cfg.Updates.handleList)
	})

	return r
}
