package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/controller"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/provider"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/repository"
	"github.com/vibast-solutions/ms-go-kiosk-payments/app/service"
	"github.com/vibast-solutions/ms-go-kiosk-payments/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for kiosk payments, provider callbacks, and settlement.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, paymentService, cleanup := mustCreatePaymentService()
	defer cleanup()

	paymentController := controller.NewPaymentController(paymentService)

	var operatorMiddleware []echo.MiddlewareFunc
	if addr := strings.TrimSpace(cfg.InternalEndpoints.AuthGRPCAddr); addr != "" {
		authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), addr)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
		}
		defer authGRPCClient.Close()

		internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
		echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
		operatorMiddleware = append(operatorMiddleware, echoInternalAuthMiddleware.RequireInternalAccess(cfg.App.ServiceName))
	} else {
		logrus.Warn("AUTH_SERVICE_GRPC_ADDR is empty, operator endpoints are not protected")
	}

	e := setupHTTPServer(paymentController, operatorMiddleware...)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

// setupHTTPServer registers the kiosk-facing and provider-facing routes
// without auth and guards the operator routes with operatorMiddleware.
func setupHTTPServer(paymentController *controller.PaymentController, operatorMiddleware ...echo.MiddlewareFunc) *echo.Echo {
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
				"request_id": v.RequestID,
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
	e.Use(ensureRequestID())

	e.GET("/health", paymentController.Health)

	payments := e.Group("/payments")
	payments.POST("", paymentController.CreatePayment)
	payments.GET("/:id", paymentController.GetPayment)
	payments.POST("/callback", paymentController.HandleCallback)

	payments.GET("", paymentController.ListPayments, operatorMiddleware...)
	payments.GET("/oldest-paid", paymentController.GetOldestPaid, operatorMiddleware...)
	payments.POST("/credit-oldest", paymentController.CreditOldestPaid, operatorMiddleware...)
	payments.GET("/:id/events", paymentController.ListPaymentEvents, operatorMiddleware...)
	payments.PATCH("/:id/credit", paymentController.CreditPayment, operatorMiddleware...)

	return e
}

// ensureRequestID propagates X-Request-ID and generates one when the caller
// sends none. The provider webhook never sets it.
func ensureRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
				ctx.Request().Header.Set(echo.HeaderXRequestID, requestID)
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func mustCreatePaymentService() (*config.Config, *service.PaymentService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	swishCfg := provider.SwishConfig{
		BaseURL:     cfg.Swish.BaseURL,
		CertPath:    cfg.Swish.CertPath,
		KeyPath:     cfg.Swish.KeyPath,
		CAPath:      cfg.Swish.CAPath,
		PayeeAlias:  cfg.Swish.PayeeAlias,
		HTTPTimeout: cfg.Swish.HTTPTimeout,
	}
	if !provider.HasClientCertificate(swishCfg) {
		logrus.WithField("base_url", swishCfg.BaseURL).Warn("SWISH_CERT_PATH is empty, Swish calls are made without a client certificate")
	}
	swishProvider, err := provider.NewSwishProvider(swishCfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize Swish client")
	}

	if cfg.Storage.Driver == config.StorageDriverMemory {
		logrus.Warn("Using in-memory storage, payments are lost on restart")
		paymentService := service.NewPaymentService(
			repository.NewMemoryPaymentRepository(),
			repository.NewMemoryPaymentEventRepository(),
			repository.NewMemoryPaymentCallbackRepository(),
			swishProvider,
			cfg.Payments,
			cfg.Swish,
		)
		return cfg, paymentService, func() {}
	}

	db := mustOpenDatabase(cfg)

	paymentService := service.NewPaymentService(
		repository.NewPaymentRepository(db),
		repository.NewPaymentEventRepository(db),
		repository.NewPaymentCallbackRepository(db),
		swishProvider,
		cfg.Payments,
		cfg.Swish,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, paymentService, cleanup
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
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

	return db
}
