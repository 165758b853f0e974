// Command audit-consumer materializes the Kafka audit stream into the
// PostgreSQL audit_events table.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/twmb/franz-go/pkg/kgo"

	"medverify/internal/platform/config"
	platformkafka "medverify/internal/platform/kafka"
	"medverify/internal/platform/logger"
	"medverify/internal/platform/postgres"
	"medverify/pkg/platform/audit/consumer"
	auditpostgres "medverify/pkg/platform/audit/store/postgres"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("audit consumer exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if len(cfg.Audit.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.Storage.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	client, err := platformkafka.NewClient(cfg.Audit.KafkaBrokers,
		kgo.ConsumerGroup(cfg.Audit.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Audit.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info("consuming audit events",
		"topic", cfg.Audit.Topic,
		"group", cfg.Audit.ConsumerGroup,
	)
	return consumer.New(client, auditpostgres.New(db), consumer.WithLogger(log)).Run(ctx)
}
