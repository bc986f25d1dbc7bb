package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chrono-core/internal/config"
	"chrono-core/internal/database"
	httpapi "chrono-core/internal/http"
	applog "chrono-core/internal/logger"
	"chrono-core/internal/repository"
	"chrono-core/internal/service"
	"chrono-core/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := applog.NewLogger(cfg.Log.Level, cfg.Log.Format, "chrono-core")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)
	sessions := store.NewSessionStore(kv)

	usersRepo := repository.NewPostgresUsersRepository(db)
	rolesRepo := repository.NewPostgresRolesRepository(db)
	grantsRepo := repository.NewPostgresRolePermissionsRepository(db)
	otpRepo := repository.NewPostgresOtpRepository(db)
	tenantResolver := repository.NewPostgresTenantResolver(db)

	mail := service.NewRelayMailClient(cfg.MailRelay.BaseURL, cfg.MailRelay.APIKey, cfg.MailRelay.From, logger)
	authSvc := service.NewAuthService(usersRepo, otpRepo, sessions, mail, cfg.Auth, logger)
	permSvc := service.NewPermissionService(rolesRepo, grantsRepo, logger)
	roleSvc := service.NewRoleService(rolesRepo, grantsRepo, logger)
	userSvc := service.NewUserService(usersRepo, rolesRepo, tenantResolver, logger)

	authn := httpapi.NewAuthenticator(usersRepo, sessions, []byte(cfg.Auth.SecretKey), logger)

	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes()
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authSvc, userSvc, logger), authn)
	router.RegisterAdminRoleRoutes(httpapi.NewRolesHandler(roleSvc, logger), authn, permSvc)
	router.RegisterAdminUserRoutes(httpapi.NewUsersHandler(userSvc, logger), authn, permSvc)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("chrono-core listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
}
