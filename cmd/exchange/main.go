package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/api"
	"github.com/nexfin/exchange-core/internal/config"
	"github.com/nexfin/exchange-core/internal/engine/book"
	"github.com/nexfin/exchange-core/internal/marketdata"
	"github.com/nexfin/exchange-core/internal/messaging"
	"github.com/nexfin/exchange-core/internal/service"
	"github.com/nexfin/exchange-core/internal/store"
	"github.com/nexfin/exchange-core/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger := logger.New(cfg.LogLevel)
	defer zapLogger.Sync()

	// Persistence.
	var st *store.Store
	if cfg.Store.InMemory {
		st, err = store.OpenInMemory()
	} else {
		st, err = store.Open(cfg.Store.Dir)
	}
	if err != nil {
		zapLogger.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close()

	// Matching engine.
	dayEnd, err := cfg.Engine.DayEndCutoff(time.Now())
	if err != nil {
		zapLogger.Fatal("Failed to resolve day-end cutoff", zap.Error(err))
	}
	books := book.NewManager(zapLogger, book.WithDayEnd(dayEnd))

	// Kafka.
	kafkaCfg := messaging.Config{
		Brokers:        cfg.Kafka.Brokers,
		OrdersTopic:    cfg.Kafka.OrdersTopic,
		ExecutionTopic: cfg.Kafka.ExecutionTopic,
		FailedTopic:    cfg.Kafka.FailedTopic,
		GroupID:        cfg.Kafka.GroupID,
		WriteTimeout:   cfg.Kafka.WriteTimeout,
	}
	producer := messaging.NewKafkaProducer(kafkaCfg, zapLogger)
	defer producer.Close()

	svc := service.NewMatchingService(zapLogger, books, st, producer, kafkaCfg, nil)
	consumer := messaging.NewConsumer(kafkaCfg, zapLogger, svc.HandleEnvelope)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			zapLogger.Error("consumer stopped", zap.Error(err))
			stop()
		}
	}()

	// Market data feed, optional.
	var feed *marketdata.Feed
	if cfg.Finnhub.Token != "" && len(cfg.Finnhub.Symbols) > 0 {
		feed = marketdata.NewFeed(cfg.Finnhub.URL, cfg.Finnhub.Token, cfg.Finnhub.Symbols, zapLogger)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				zapLogger.Error("market data feed stopped", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Info("market data feed disabled, no token or symbols configured")
	}

	server := api.NewServer(cfg.HTTP.Addr, zapLogger, books, feed)
	go func() {
		if err := server.Start(); err != nil {
			zapLogger.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("http shutdown failed", zap.Error(err))
	}
}
