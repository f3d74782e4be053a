package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/olegsazonov/emergency-backend/internal/classifier"
	"github.com/olegsazonov/emergency-backend/internal/config"
	"github.com/olegsazonov/emergency-backend/internal/db"
	httpHandlers "github.com/olegsazonov/emergency-backend/internal/http/handlers"
	httpRouter "github.com/olegsazonov/emergency-backend/internal/http/router"
	"github.com/olegsazonov/emergency-backend/internal/logger"
	"github.com/olegsazonov/emergency-backend/internal/repository"
	"github.com/olegsazonov/emergency-backend/internal/service"
	"github.com/olegsazonov/emergency-backend/internal/storage"
	"github.com/olegsazonov/emergency-backend/internal/triage"
	"github.com/olegsazonov/emergency-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	emergencyRepo := repository.NewEmergencyRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo)

	var priorityClassifier service.Classifier
	if cfg.ClassifierURL != "" {
		priorityClassifier = classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout)
	}

	emergencyService := service.NewEmergencyService(emergencyRepo, priorityClassifier, triage.NewQueue())

	// Очередь ожидания восстанавливается из хранилища при каждом старте.
	if err := emergencyService.RebuildQueue(ctx); err != nil {
		log.Fatalf("main: не удалось восстановить очередь: %v", err)
	}

	// Служебные учётные записи. В production аккаунты заводятся руками.
	if cfg.Env != "production" {
		seedService := service.NewSeedService(userRepo)
		if err := seedService.EnsureDefaultAccounts(ctx); err != nil {
			log.Fatalf("main: начальное наполнение: %v", err)
		}
	}

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	emergencyService.SetNotifier(ws.NewTransitionNotifier(hub))

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	emergencyHandler := httpHandlers.NewEmergencyHandler(emergencyService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	mediaHandler := httpHandlers.NewMediaHandler(mediaRepo, photoStorage, emergencyService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg,
		authHandler, emergencyHandler, notificationHandler, mediaHandler, wsHandler, healthHandler,
		tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
