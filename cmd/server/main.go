package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/api"
	"github.com/example/subsmarket/internal/bootstrap"
	"github.com/example/subsmarket/internal/config"
	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/gateway/gemini"
	"github.com/example/subsmarket/internal/gateway/pix"
	"github.com/example/subsmarket/internal/gateway/whatsapp"
	"github.com/example/subsmarket/internal/middleware"
)

func main() {
	if err := bootstrap.LoadEnv(os.Getenv("GIN_MODE")); err != nil {
		log.Println("Warning: Error loading .env file:", err)
	}

	// --- 1. Configuration and logger ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}
	zapLogger, err := bootstrap.NewLogger(appConfig.AppEnv)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 2. Infrastructure: Firebase, cache, repositories ---
	infra, err := bootstrap.New(rootCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize infrastructure", zap.Error(err))
	}
	defer infra.Close()
	repos := infra.Repos

	// --- 3. Services ---
	notificationService := core.NewNotificationService(repos.Notifications, zapLogger)
	userService := core.NewUserService(repos.Users, notificationService, infra.Cipher, zapLogger)
	catalogService := core.NewCatalogService(repos.Services, repos.Plans, repos.Deliverables, infra.Cipher, zapLogger)
	adminService := core.NewAdminService(repos.Users, repos.Coupons, repos.Configs, infra.Cipher, zapLogger)
	whatsappService := core.NewWhatsappService(whatsapp.NewClient(appConfig.WhatsappAPIBaseURL), repos.Configs, infra.Cipher, appConfig.WhatsappConnectTimeout, zapLogger)
	checkoutService := core.NewCheckoutService(core.CheckoutDeps{
		Users:         repos.Users,
		Services:      repos.Services,
		Plans:         repos.Plans,
		Deliverables:  repos.Deliverables,
		Coupons:       repos.Coupons,
		Subscriptions: repos.Subscriptions,
		Tickets:       repos.Tickets,
		Checkouts:     repos.Checkouts,
		Configs:       repos.Configs,
		Notifications: notificationService,
		Gateway:       pix.NewClient(appConfig.PixAPIBaseURL),
		Locker:        infra.Cache,
		Sealer:        infra.Cipher,
		Alerter:       infra.Alerter,
	}, appConfig.PixAPIToken, appConfig.PaymentPollInterval, zapLogger)
	ticketService := core.NewTicketService(repos.Tickets, repos.Subscriptions, repos.Users, checkoutService, notificationService, appConfig.MediaAckDelay, zapLogger)
	if appConfig.GeminiAPIKey == "" {
		zapLogger.Warn("GEMINI_API_KEY not set, recommendations will answer 503")
	}
	geminiClient, err := gemini.NewClient(rootCtx, appConfig.GeminiAPIKey, appConfig.GeminiModel)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to create Gemini client", zap.Error(err))
	}
	recommendationService := core.NewRecommendationService(geminiClient, repos.Services, zapLogger)
	zapLogger.Info("Core services initialized successfully.")

	// --- 4. Optional in-process notifier ---
	notifierDone := make(chan struct{})
	if appConfig.NotifierEmbedded {
		worker := infra.NewWorker("")
		go func() {
			defer close(notifierDone)
			if err := worker.Run(rootCtx); err != nil {
				zapLogger.Error("Embedded notifier stopped with error", zap.Error(err))
			}
		}()
	} else {
		close(notifierDone)
	}

	// --- 5. Gin engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured.")
	}

	authMW := middleware.NewAuthMiddleware(infra.Clients.Auth, zapLogger)
	roleMW := middleware.NewRoleMiddleware(userService, zapLogger)
	api.SetupRoutes(router, api.Handlers{
		Users:           api.NewUserHandler(userService, zapLogger),
		Catalog:         api.NewCatalogHandler(catalogService, zapLogger),
		Checkout:        api.NewCheckoutHandler(checkoutService, api.DefaultAwaitTimeout, zapLogger),
		Tickets:         api.NewTicketHandler(ticketService, appConfig.ClientURL, zapLogger),
		Admin:           api.NewAdminHandler(adminService, whatsappService, zapLogger),
		Recommendations: api.NewRecommendationHandler(recommendationService, zapLogger),
	}, authMW, roleMW)

	// --- 6. Start the HTTP server with graceful shutdown ---
	srv := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: router,
	}
	go func() {
		zapLogger.Info("Server starting", zap.String("port", appConfig.Port), zap.String("mode", gin.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	<-notifierDone
	zapLogger.Info("Server exited")
}
