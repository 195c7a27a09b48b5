package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/access"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/controller"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/database"
	grpcserver "github.com/vibast-solutions/ms-go-api-subscriptions/app/grpc"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/repository"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/service"
	"github.com/vibast-solutions/ms-go-api-subscriptions/config"
	"google.golang.org/grpc"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the API subscriptions service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending schema migrations before serving")
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := mustLoadConfig()

	db := mustOpenDatabase(cfg)
	defer closeDatabase(db)

	if serveMigrate {
		if err := database.MigrateUp(db); err != nil {
			logrus.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize subscription locker")
	}
	defer closeLocker()

	divergenceNotifier := newNotifier(cfg)
	defer closeNotifier(divergenceNotifier)

	subscriptionRepo := repository.NewSubscriptionRepository(db)
	reconciliationRepo := repository.NewReconciliationRepository(db)
	subscriptionService := service.NewAPISubscriptionService(
		subscriptionRepo,
		reconciliationRepo,
		mustCreateGateway(cfg),
		locker,
		divergenceNotifier,
		cfg.Sync,
	)
	callers := access.NewResolver(cfg.Auth.AdminRole)
	grpcSubscriptionServer := grpcserver.NewServer(subscriptionService, callers)
	subscriptionController := controller.NewAPISubscriptionController(subscriptionService, callers)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()
	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(subscriptionController, echoInternalAuthMiddleware, cfg.App.ServiceName)
	grpcSrv, lis := setupGRPCServer(cfg, grpcSubscriptionServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	// In-flight synchronizations run on detached contexts bounded by
	// GATEWAY_OPERATION_TIMEOUT_SECONDS; give them that long to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.OperationTimeout+10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	subscriptionController *controller.APISubscriptionController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
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
		LogHeaders:   []string{access.HeaderCallerID},
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
			// Headers holds only the caller id; its key is canonicalized by echo.
			for _, callerIDs := range v.Headers {
				if len(callerIDs) > 0 {
					fields["caller_id"] = callerIDs[0]
				}
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
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))
	e.Use(internalAuthMiddleware.RequireInternalAccess(appServiceName))

	e.GET("/health", subscriptionController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/deleted-api-subscriptions", subscriptionController.ListDeletedAPISubscriptions)

	subscriptions := e.Group("/api-subscriptions")
	subscriptions.GET("", subscriptionController.ListAPISubscriptions)
	subscriptions.GET("/:id", subscriptionController.GetAPISubscription)
	subscriptions.PUT("/:id", subscriptionController.CreateOrUpdateAPISubscription)
	subscriptions.DELETE("/:id", subscriptionController.DeleteAPISubscription)
	subscriptions.POST("/:id/regenerate-key", subscriptionController.RegenerateAPISubscriptionKey)

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	subscriptionServer *grpcserver.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoveryInterceptor(),
			grpcserver.RequestIDInterceptor(),
			grpcserver.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName),
		),
	)
	grpcserver.RegisterAPISubscriptionsServer(grpcSrv, subscriptionServer)

	return grpcSrv, lis
}
