package cmd

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/events"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/gateway"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lock"
	"github.com/vibast-solutions/ms-go-api-subscriptions/config"

	_ "github.com/go-sql-driver/mysql"
)

type notifier interface {
	events.Notifier
	Close() error
}

type noopCloser struct {
	events.Notifier
}

func (noopCloser) Close() error { return nil }

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDatabase(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

func closeDatabase(db *sql.DB) {
	if err := db.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close database")
	}
}

func mustCreateGateway(cfg *config.Config) *gateway.SubscriptionGateway {
	credential, err := gateway.NewCredential(cfg.Gateway)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize gateway credentials")
	}
	client, err := gateway.NewSubscriptionClient(cfg.Gateway, credential)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize API Management client")
	}
	return gateway.NewSubscriptionGateway(client, cfg.Gateway.ResourceGroup, cfg.Gateway.ServiceName)
}

// newLocker returns the per-subscription lock and a cleanup func.
func newLocker(cfg *config.Config) (lock.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case "", "memory":
		return lock.NewMemoryLocker(), func() {}, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		cleanup := func() {
			if err := client.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
		return lock.NewRedisLocker(client, cfg.Lock.TTL, cfg.Lock.RetryInterval, cfg.Lock.WaitTimeout), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unsupported LOCK_BACKEND %q", cfg.Lock.Backend)
	}
}

func newNotifier(cfg *config.Config) notifier {
	if len(cfg.Kafka.Brokers) == 0 {
		return noopCloser{Notifier: events.NewLogNotifier()}
	}
	writer := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.DivergenceTopic)
	return events.NewKafkaNotifier(writer, cfg.App.ServiceName)
}

func closeNotifier(n notifier) {
	if err := n.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close divergence notifier")
	}
}
