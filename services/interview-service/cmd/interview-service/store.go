package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/adoptly/adoptly/libs/config"
	"github.com/adoptly/adoptly/libs/db"
	"github.com/adoptly/adoptly/libs/kafkax"
	"github.com/adoptly/adoptly/libs/runtime"
	"github.com/adoptly/adoptly/services/interview-service/internal/adoptionapi"
	"github.com/adoptly/adoptly/services/interview-service/internal/consumer"
	"github.com/adoptly/adoptly/services/interview-service/internal/handlers"
	"github.com/adoptly/adoptly/services/interview-service/internal/inbox"
	"github.com/adoptly/adoptly/services/interview-service/internal/outbox"
	"github.com/adoptly/adoptly/services/interview-service/internal/storage"
)

// openStore prefers the remote adoption API when ADOPTION_API_URL is set and falls
// back to the local Postgres store. In Postgres mode the outbox publisher and the
// window-offered consumer are started here.
func openStore(ctx context.Context, logger *slog.Logger) (handlers.SubmissionStore, []runtime.ReadyCheck, func(), error) {
	if base := config.String("ADOPTION_API_URL", ""); base != "" {
		logger.Info("using remote adoption api", "base_url", base)
		return adoptionapi.New(base), nil, func() {}, nil
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return nil, nil, nil, err
	}
	maxConns, err := config.Int("DATABASE_MAX_CONNS", 10, 1, 100)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		return nil, nil, nil, err
	}

	outboxRepo := outbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	repo := storage.NewSubmissionRepository(pool, outboxRepo)
	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})

		windows := consumer.New(logger, pool, inbox.NewRepository(), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "interview-service"),
			Topic:   config.String("KAFKA_WINDOW_TOPIC", consumer.TopicWindowOffered),
		}, consumer.WindowOfferedHandler(repo, func(submissionID string) {
			logger.Info("window offer ignored; schedule already selected", "submission_id", submissionID)
		}))
		go windows.Run(ctx)
	}
	return repo, checks, pool.Close, nil
}
