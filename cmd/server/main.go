package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"planificanet/internal/catalog"
	"planificanet/internal/config"
	"planificanet/internal/handler"
	"planificanet/internal/logger"
	"planificanet/internal/middleware"
	"planificanet/internal/notify"
	"planificanet/internal/service"
	"planificanet/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	log.Info("connected to postgres")

	if cfg.SkipMigrations {
		log.Warn("migrations skipped")
	} else {
		applied, err := store.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		log.Info("migrations done", zap.Strings("applied", applied))
	}

	st := store.New(pool)

	// catalog reads share the pool through database/sql
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	catDB, err := catalog.Open(sqlDB, log)
	if err != nil {
		return err
	}
	cat := catalog.NewCached(catDB, cfg.CatalogTTL)
	defer cat.Stop()

	// stopped after srv.Shutdown, not by the signal
	mailCtx, stopMail := context.WithCancel(context.Background())
	defer stopMail()
	var (
		wg       sync.WaitGroup
		notifier service.Notifier = notify.Nop{}
	)
	if cfg.MailEnabled() {
		mailer := notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
		d := notify.NewDispatcher(mailer, st, log.Named("mail"), 256)
		notifier = d
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Run(mailCtx)
		}()
		log.Info("mail mirror enabled", zap.String("smtp_host", cfg.SMTPHost))
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Cleanup(ctx)

	h := handler.New(handler.Deps{
		Accounts:      service.NewAccounts(st, cfg.JWTSecret),
		Appointments:  service.NewAppointments(st, st, cat, notifier, log),
		Notifications: service.NewNotifications(st),
		Profiles:      service.NewProfiles(st),
		Catalog:       cat,
		Limiter:       limiter,
		Secret:        cfg.JWTSecret,
		Log:           log,
	})

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	srv := &http.Server{
		Handler:           httpHandler(router, cfg.CORSOrigins, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	log.Info("http listening", zap.String("addr", ln.Addr().String()))

	return serve(ctx, srv, ln, log, func() {
		stopMail()
		wg.Wait()
	})
}

// httpHandler wraps the router so that unmatched routes (404/405) are
// access-logged and tagged with a request id too.
func httpHandler(router http.Handler, origins []string, log *zap.Logger) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(log.Named("panic"))),
	)
	return recovery(cors(middleware.AccessLog(log)(router)))
}

// serve runs srv on ln until ctx is done, shuts it down, and calls
// afterShutdown once in-flight requests have completed.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, log *zap.Logger, afterShutdown func()) error {
	defer afterShutdown()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	return nil
}
