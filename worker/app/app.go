// Package app builds a pipeline session and its optional observers from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bgRemover/worker/cache"
	"bgRemover/worker/config"
	"bgRemover/worker/events"
	"bgRemover/worker/kafka"
	"bgRemover/worker/remover"
	"bgRemover/worker/session"
)

// NewLogger returns a development logger for ENV=development and a production one otherwise.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func NewRemover(cfg *config.Config, logger *zap.Logger) (remover.Remover, error) {
	switch cfg.Remover {
	case config.RemoverHTTP:
		return remover.NewHTTP(cfg.RemoverURL, nil, logger), nil
	case config.RemoverLocal:
		return remover.NewLocal(cfg.LocalTolerance, cfg.LocalMaxDim, logger), nil
	default:
		return nil, fmt.Errorf("unknown remover %q", cfg.Remover)
	}
}

// NewPublisher connects the configured observers. The returned cleanup closes them.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, func(), error) {
	var (
		publishers []events.Publisher
		closers    []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		publishers = append(publishers, cache.NewStatusCache(client))
		closers = append(closers, func() { client.Close() })
		logger.Info("Status mirror enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer, err := kafka.NewProducer(brokers, cfg.KafkaTopic)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create kafka producer: %w", err)
		}
		publishers = append(publishers, producer)
		closers = append(closers, func() { producer.Close() })
		logger.Info("Event publishing enabled",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	if len(publishers) == 0 {
		return events.Nop, cleanup, nil
	}
	return events.Multi(publishers...), cleanup, nil
}

// NewSession assembles a session from configuration. Call Start on it before use
// and the returned cleanup after Close.
func NewSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*session.Session, func(), error) {
	rm, err := NewRemover(cfg, logger.Named("remover"))
	if err != nil {
		return nil, nil, err
	}

	publisher, cleanup, err := NewPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	sess := session.New(session.Options{
		Remover:          rm,
		RemoverConfig:    remover.Config{Device: cfg.RemoverDevice},
		Publisher:        publisher,
		MaxUploadSize:    cfg.MaxUploadBytes(),
		CompressionLevel: cfg.CompressionLevel,
		SpoolDir:         cfg.SpoolDir,
	}, logger)

	return sess, cleanup, nil
}
