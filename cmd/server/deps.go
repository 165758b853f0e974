package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medverify/internal/doctor"
	doctorstore "medverify/internal/doctor/store"
	"medverify/internal/platform/config"
	"medverify/internal/platform/health"
	platformkafka "medverify/internal/platform/kafka"
	platformmongo "medverify/internal/platform/mongo"
	"medverify/internal/platform/postgres"
	redisclient "medverify/internal/platform/redis"
	"medverify/internal/ratelimit"
	"medverify/internal/verification"
	"medverify/internal/verification/guard"
	"medverify/internal/verification/ledger"
	ledgerstore "medverify/internal/verification/ledger/store"
	audit "medverify/pkg/platform/audit"
	auditkafka "medverify/pkg/platform/audit/store/kafka"
	auditmemory "medverify/pkg/platform/audit/store/memory"
	auditpostgres "medverify/pkg/platform/audit/store/postgres"
	"medverify/pkg/platform/privacy"
)

// guardTTL outlives the handler's verify timeout so a hold only lapses
// after its attempt has ended.
const guardTTL = 2 * time.Minute

const auditTopicPartitions = 3

// deps holds the process's backing services.
type deps struct {
	ledgerStore ledger.Store
	doctorStore doctor.Store
	auditStore  audit.Store
	guard       verification.Guard
	rateStore   ratelimit.Store
	checks      map[string]health.Check
	closers     []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// connect opens the configured backends. On error everything opened so far
// is closed.
func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *deps, err error) {
	d := &deps{checks: make(map[string]health.Check)}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	var sealer *privacy.Sealer
	if cfg.Privacy.PIIKey != "" {
		if sealer, err = privacy.NewSealerFromHex(cfg.Privacy.PIIKey); err != nil {
			return nil, fmt.Errorf("pii key: %w", err)
		}
	} else {
		log.Warn("PII_KEY not set; license numbers and emails are stored in plaintext")
	}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		d.ledgerStore = ledgerstore.NewPostgres(db, ledgerstore.WithSealer(sealer))
		d.doctorStore = doctorstore.NewPostgres(db, sealer)
		d.auditStore = auditpostgres.New(db)
		d.checks["postgres"] = db.PingContext
	case config.BackendMongo:
		client, err := platformmongo.Connect(ctx, cfg.Storage.MongoURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		})
		db := client.Database(cfg.Storage.MongoDatabase)
		ledgers := ledgerstore.NewMongo(db, ledgerstore.WithSealer(sealer))
		if err := ledgers.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		d.ledgerStore = ledgers
		d.doctorStore = doctorstore.NewMongo(db, sealer)
		d.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	default:
		d.ledgerStore = ledgerstore.NewInMemoryStore()
		d.doctorStore = doctorstore.NewInMemoryStore()
	}

	if len(cfg.Audit.KafkaBrokers) > 0 {
		client, err := platformkafka.NewClient(cfg.Audit.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, client.Close)
		if err := platformkafka.EnsureTopic(ctx, client, cfg.Audit.Topic, auditTopicPartitions); err != nil {
			return nil, err
		}
		d.auditStore = auditkafka.New(client, cfg.Audit.Topic)
		d.checks["kafka"] = client.Ping
	}
	if d.auditStore == nil {
		d.auditStore = auditmemory.NewInMemoryStore()
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		d.closers = append(d.closers, func() { _ = rc.Close() })
		d.guard = guard.NewRedisGuard(rc.Client, guardTTL)
		d.rateStore = ratelimit.NewRedisStore(rc.Client)
		d.checks["redis"] = rc.Health
	} else {
		d.guard = guard.NewMemoryGuard(guardTTL)
		d.rateStore = ratelimit.NewInMemoryStore()
	}

	return d, nil
}
