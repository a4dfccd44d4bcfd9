package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazemadel/carmarket-service/internal/config"
	"github.com/hazemadel/carmarket-service/internal/logger"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

const (
	pollInterval = 1 * time.Second
	pollBatch    = 100
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	r := repo.NewRepository(gdb, rdb, kw, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Infof("carmarket-poller started, topic=%s", cfg.Kafka.Topic)
	for {
		select {
		case <-ctx.Done():
			log.Info("carmarket-poller stopping")
			return
		case <-ticker.C:
		}

		events, err := r.PollOutbox(ctx, pollBatch)
		if err != nil {
			log.Errorf("poll outbox: %v", err)
			continue
		}
		for _, evt := range events {
			if err := r.PublishEvent(ctx, evt); err != nil {
				log.Errorf("publish event %d: %v", evt.ID, err)
				continue
			}
			if err := r.MarkOutboxProcessed(ctx, evt.ID); err != nil {
				log.Errorf("mark processed event %d: %v", evt.ID, err)
				continue
			}
			log.Infof("listing %d: %s shipped", evt.AggregateID, evt.EventType)
		}
	}
}
