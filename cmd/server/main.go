package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hazemadel/carmarket-service/internal/config"
	"github.com/hazemadel/carmarket-service/internal/logger"
	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"github.com/hazemadel/carmarket-service/internal/service"
	"github.com/hazemadel/carmarket-service/internal/storage"
	httptransport "github.com/hazemadel/carmarket-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.User{}, &model.Governorate{}, &model.Listing{},
		&model.Favorite{}, &model.OutboxEvent{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 6. object storage
	store, err := storage.NewS3Storage(
		cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey,
		cfg.Minio.Bucket, cfg.Minio.UseSSL, log)
	if err != nil {
		log.Fatalf("object storage: %v", err)
	}

	// 7. repo & services
	repository := repo.NewRepository(gdb, rdb, kw, log)
	svcs := httptransport.Services{
		Listings:     service.NewListingService(repository, log),
		Status:       service.NewListingStatusService(repository, log),
		Governorates: service.NewGovernorateService(repository, log),
		Favorites:    service.NewFavoriteService(repository, log),
		Media:        service.NewMediaService(repository, store, log),
	}

	// 8. gin router
	router := httptransport.NewRouter(svcs, cfg.RateLimit, cfg.Auth.JWTSecret, log)

	// 9. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("carmarket-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
