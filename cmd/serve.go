package cmd

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wali-delivery/ms-go-payments/app/bus"
	"github.com/wali-delivery/ms-go-payments/app/controller"
	"github.com/wali-delivery/ms-go-payments/app/factory"
	"github.com/wali-delivery/ms-go-payments/app/provider"
	"github.com/wali-delivery/ms-go-payments/app/reconciler"
	"github.com/wali-delivery/ms-go-payments/app/repository"
	"github.com/wali-delivery/ms-go-payments/app/service"
	"github.com/wali-delivery/ms-go-payments/app/types"
	"github.com/wali-delivery/ms-go-payments/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the Echo HTTP server with the reconciler and event notifier running in-process.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, methodService, eventBus, cleanup := mustCreatePaymentService()
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := reconciler.New(
		factory.NewModuleLogger("reconciler"),
		paymentService,
		cfg.Payments.PollInterval,
		cfg.Payments.ReconcileWorkers,
	)
	paymentService.SetTracker(rec)
	rec.Start(ctx)
	defer rec.Stop()

	notifierEvents, unsubscribe := eventBus.Subscribe()
	defer unsubscribe()
	notifier := service.NewNotifier(
		factory.NewModuleLogger("notifier"),
		service.NewLogGateway(factory.NewModuleLogger("notification-gateway")),
	)
	go notifier.Run(ctx, notifierEvents)

	paymentController := controller.NewPaymentController(paymentService)
	methodController := controller.NewPaymentMethodController(methodService)

	e := setupHTTPServer(paymentController, methodController, cfg.App.APIKey)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	paymentController *controller.PaymentController,
	methodController *controller.PaymentMethodController,
	apiKey string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", paymentController.Health)

	// Provider pushes authenticate with their own signatures, not our API key.
	webhooks := e.Group("/webhooks/providers")
	webhooks.POST("/:provider", paymentController.HandleProviderWebhook)

	payments := e.Group("/payments", requireAPIKey(apiKey))
	payments.POST("", paymentController.InitiatePayment)
	payments.GET("", paymentController.ListTransactions)
	payments.GET("/:id", paymentController.GetTransaction)
	payments.GET("/:id/status", paymentController.CheckStatus)
	payments.POST("/:id/cancel", paymentController.CancelPayment)

	methods := e.Group("/payment-methods", requireAPIKey(apiKey))
	methods.POST("", methodController.Create)
	methods.GET("", methodController.List)
	methods.POST("/:id/default", methodController.SetDefault)
	methods.DELETE("/:id", methodController.Delete)

	return e
}

func requireAPIKey(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if apiKey == "" {
				return next(ctx)
			}
			presented := strings.TrimSpace(ctx.Request().Header.Get("X-API-Key"))
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid api key"})
			}
			return next(ctx)
		}
	}
}

func mustCreatePaymentService() (*config.Config, *service.PaymentService, *service.PaymentMethodService, *bus.Bus, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	factory.ConfigureLogging(cfg.Log.Level)

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	txRepo := repository.NewTransactionRepository(db)
	eventRepo := repository.NewTransactionEventRepository(db)
	auditRepo := repository.NewWebhookAuditRepository(db)
	methodRepo := repository.NewPaymentMethodRepository(db)

	providerRegistry := provider.NewRegistry(buildAdapters(cfg)...)
	eventBus := bus.New(factory.NewModuleLogger("event-bus"), cfg.Payments.NotifierBuffer)

	paymentService := service.NewPaymentService(
		factory.NewModuleLogger("payments-service"),
		txRepo,
		eventRepo,
		auditRepo,
		methodRepo,
		providerRegistry,
		eventBus,
		cfg.Payments,
		cfg.App.BaseURL,
	)
	methodService := service.NewPaymentMethodService(
		factory.NewModuleLogger("payment-methods-service"),
		methodRepo,
	)

	cleanup := func() {
		eventBus.Close()
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, paymentService, methodService, eventBus, cleanup
}

// buildAdapters wires the live provider adapters, or simulated stand-ins for
// every non-cash provider when PAYMENTS_SIMULATED_PROVIDERS is on.
func buildAdapters(cfg *config.Config) []provider.Adapter {
	if cfg.Payments.SimulatedProviders {
		logrus.Warn("Running with simulated provider adapters")
		return []provider.Adapter{
			provider.NewSimulatedAdapter(types.ProviderOrangeMoney),
			provider.NewSimulatedAdapter(types.ProviderWave),
			provider.NewSimulatedAdapter(types.ProviderFreeMoney),
			provider.NewSimulatedAdapter(types.ProviderPayDunya),
			provider.NewSimulatedAdapter(types.ProviderCinetPay),
		}
	}

	return []provider.Adapter{
		provider.NewOrangeMoneyAdapter(provider.OrangeMoneyConfig{
			APIKey:        cfg.OrangeMoney.APIKey,
			APISecret:     cfg.OrangeMoney.APISecret,
			WebhookSecret: cfg.OrangeMoney.WebhookSecret,
			BaseURL:       cfg.OrangeMoney.BaseURL,
			HTTPTimeout:   cfg.OrangeMoney.HTTPTimeout,
			TestMode:      cfg.OrangeMoney.TestMode,
		}),
		provider.NewWaveAdapter(provider.WaveConfig{
			APIKey:        cfg.Wave.APIKey,
			WebhookSecret: cfg.Wave.WebhookSecret,
			BaseURL:       cfg.Wave.BaseURL,
			HTTPTimeout:   cfg.Wave.HTTPTimeout,
			TestMode:      cfg.Wave.TestMode,
		}),
		provider.NewFreeMoneyAdapter(provider.FreeMoneyConfig{
			APIKey:        cfg.FreeMoney.APIKey,
			APISecret:     cfg.FreeMoney.APISecret,
			WebhookSecret: cfg.FreeMoney.WebhookSecret,
			BaseURL:       cfg.FreeMoney.BaseURL,
			HTTPTimeout:   cfg.FreeMoney.HTTPTimeout,
			TestMode:      cfg.FreeMoney.TestMode,
		}),
		provider.NewPayDunyaAdapter(provider.PayDunyaConfig{
			MasterKey:   cfg.PayDunya.MasterKey,
			PrivateKey:  cfg.PayDunya.PrivateKey,
			Token:       cfg.PayDunya.SiteID,
			BaseURL:     cfg.PayDunya.BaseURL,
			HTTPTimeout: cfg.PayDunya.HTTPTimeout,
			TestMode:    cfg.PayDunya.TestMode,
		}),
		provider.NewCinetPayAdapter(provider.CinetPayConfig{
			APIKey:      cfg.CinetPay.MasterKey,
			SecretKey:   cfg.CinetPay.PrivateKey,
			SiteID:      cfg.CinetPay.SiteID,
			BaseURL:     cfg.CinetPay.BaseURL,
			HTTPTimeout: cfg.CinetPay.HTTPTimeout,
			TestMode:    cfg.CinetPay.TestMode,
		}),
	}
}
