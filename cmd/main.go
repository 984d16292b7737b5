package main

import (
	"net/http"
	"time"

	"qalatransit/backend/internal/api/handler"
	"qalatransit/backend/internal/chatstate"
	"qalatransit/backend/internal/complaint"
	"qalatransit/backend/internal/config"
	"qalatransit/backend/internal/feed"
	"qalatransit/backend/internal/models"
	"qalatransit/backend/internal/relay"
	"qalatransit/backend/internal/storage"
	"qalatransit/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config, logger *zap.Logger) (storage.Storage, chatstate.Store, *redis.Client) {
	if cfg.Database.UseInMemory {
		logger.Info("using in-memory storage")
		return storage.NewMemoryStorage(), chatstate.NewMemoryStore(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect PostgreSQL", zap.Error(err))
	}

	if err := db.AutoMigrate(&models.Complaint{}, &models.User{}); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	s := storage.NewStorageService(db, rdb, logger)
	if _, err := rdb.Ping(s.Ctx).Result(); err != nil {
		logger.Fatal("failed to connect Redis", zap.Error(err))
	}

	logger.Info("database and Redis connections established, migrations complete")
	return s, chatstate.NewRedisStore(rdb), rdb
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file loaded")
	}

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	store, states, rdb := setupDependencies(cfg, logger)

	relayClient := relay.NewClient(cfg.Relay, logger)
	svc := complaint.NewService(store, relayClient, logger)

	hub := feed.NewHub(rdb, logger)
	go hub.Run()

	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		botService, err := telegram.NewBotService(cfg.Telegram.Token, svc, states, logger)
		if err != nil {
			logger.Fatal("failed to start Telegram bot", zap.Error(err))
		}
		go botService.Run()
	} else {
		logger.Warn("Telegram bot disabled or token not set")
	}

	r := gin.Default()
	h := handler.NewHandler(svc, store, relayClient, hub, cfg.Auth.JWTSecret, logger)
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Info("starting HTTP server", zap.String("addr", cfg.Server.Addr))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
