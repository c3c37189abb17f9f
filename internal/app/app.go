package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/kassa/internal/domain/billing"
	"github.com/xenking/kassa/internal/domain/checkout"
	"github.com/xenking/kassa/internal/domain/order"
	"github.com/xenking/kassa/internal/gateway/stripe"
	"github.com/xenking/kassa/internal/handler"
	"github.com/xenking/kassa/internal/storage/postgres"
	"github.com/xenking/kassa/pkg/health"
	"github.com/xenking/kassa/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	rate, err := cfg.ExchangeRate()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Repositories.
	itemRepo := postgres.NewItemRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	billingRepo := postgres.NewBillingRepository(pool)

	// Payment gateway.
	gw := stripe.New(stripe.Config{
		SecretKey: cfg.Stripe.SecretKey,
		BaseURL:   cfg.Stripe.BaseURL,
		Timeout:   cfg.Stripe.Timeout,
	})

	// Domain services.
	orderService := order.NewService(orderRepo, itemRepo, billingRepo, rate)
	lifecycle := billing.NewLifecycle(billingRepo, gw, lg.Named("billing"))
	builder := checkout.NewBuilder(itemRepo, orderRepo, billingRepo, rate, cfg.PublicBaseURL)

	// HTTP handlers.
	h, err := handler.NewHandler(
		itemRepo,
		orderService,
		billingRepo,
		lifecycle,
		builder,
		gw,
		m.MeterProvider().Meter("kassa"),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	api := otelhttp.NewHandler(mux, "kassa-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(api,
			httpmiddleware.Recovery(),
			cors.Handler(cors.Options{
				AllowedOrigins:   cfg.CORS.Origins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
