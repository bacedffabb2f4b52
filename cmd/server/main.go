package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"roadbook/internal/audit"
	"roadbook/internal/cache"
	"roadbook/internal/document"
	driverservice "roadbook/internal/driver/service"
	driverstore "roadbook/internal/driver/store"
	"roadbook/internal/hash"
	"roadbook/internal/health"
	httpapi "roadbook/internal/http"
	mailservice "roadbook/internal/mail/service"
	mailsmtp "roadbook/internal/mail/smtp"
	mailstore "roadbook/internal/mail/store"
	"roadbook/internal/platform/config"
	"roadbook/internal/platform/httpserver"
	"roadbook/internal/platform/logger"
	"roadbook/internal/platform/metrics"
	"roadbook/internal/platform/postgres"
	"roadbook/internal/platform/redis"
	"roadbook/internal/token"
	updateservice "roadbook/internal/update/service"
	updatestore "roadbook/internal/update/store"
	workdayservice "roadbook/internal/workday/service"
	workdaystore "roadbook/internal/workday/store"
)

// main wires the process: config, storage, services, transport. Business
// rules live in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pool, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	cacheStore := cache.NewRedisStore(redisClient.Client)
	hasher := hash.New()
	issuer := token.NewIssuer(cfg.JWT)

	var auditor driverservice.AuditPublisher = audit.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := audit.NewPublisher(ctx, cfg.KafkaBrokers, cfg.AuditTopic, audit.WithLogger(log))
		if err != nil {
			log.Error("audit publisher unavailable", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		auditor = publisher
	}

	drivers, err := driverservice.New(driverstore.NewPostgres(pool), cacheStore, hasher,
		driverservice.WithLogger(log), driverservice.WithAudit(auditor))
	if err != nil {
		log.Error("driver service init failed", "error", err)
		os.Exit(1)
	}

	var workdayOpts []workdayservice.Option
	workdayOpts = append(workdayOpts, workdayservice.WithLogger(log))
	if cfg.ReportServiceURL != "" {
		workdayOpts = append(workdayOpts, workdayservice.WithGenerator(document.NewClient(cfg.ReportServiceURL)))
	}
	workdays, err := workdayservice.New(workdaystore.NewPostgres(pool), cacheStore, workdayOpts...)
	if err != nil {
		log.Error("workday service init failed", "error", err)
		os.Exit(1)
	}

	updates, err := updateservice.New(updatestore.NewPostgres(pool), cacheStore,
		updateservice.WithLogger(log))
	if err != nil {
		log.Error("update service init failed", "error", err)
		os.Exit(1)
	}

	mailer, err := mailservice.New(mailstore.NewPostgres(pool), cacheStore,
		mailsmtp.NewSender(cfg.SMTP), mailservice.WithLogger(log))
	if err != nil {
		log.Error("mail service init failed", "error", err)
		os.Exit(1)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Drivers:  httpapi.NewDriverHandler(drivers, mailer, issuer, cfg.EmailDomainDenylist, log),
		Workdays: httpapi.NewWorkdayHandler(workdays, drivers),
		Updates:  httpapi.NewUpdateHandler(updates),
		Issuer:   issuer,
		Checkers: []health.Checker{
			health.NewPostgresChecker(pool),
			health.NewRedisChecker(redisClient),
		},
		Logger:    log,
		AuthRPS:   rate.Limit(5),
		AuthBurst: 10,
	})

	apiServer := httpserver.New(cfg.Addr, router)
	metricsServer := httpserver.New(cfg.MetricsAddr, metrics.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting api server", "addr", cfg.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting metrics server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return apiServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
