package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Auth              AuthConfig
	Gateway           GatewayConfig
	Lock              LockConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Sync              SyncConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type AuthConfig struct {
	AdminRole string
}

type GatewayConfig struct {
	BaseURL             string
	AzureSubscriptionID string
	ResourceGroup       string
	ServiceName         string
	APIVersion          string
	Token               string
	TenantID            string
	ClientID            string
	ClientSecret        string
	RequestTimeout      time.Duration
	InsecureSkipVerify  bool
}

type LockConfig struct {
	Backend       string
	TTL           time.Duration
	RetryInterval time.Duration
	WaitTimeout   time.Duration
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers         []string
	DivergenceTopic string
}

type SyncConfig struct {
	OperationTimeout time.Duration
}

type JobsConfig struct {
	ReconcileInterval    time.Duration
	ReconcileStaleAfter  time.Duration
	ReconcileConcurrency int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	cfg := &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "api-subscriptions-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{Level: getEnv("LOG_LEVEL", "info")},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Auth: AuthConfig{
			AdminRole: getEnv("ADMIN_ROLE", "admin"),
		},
		Gateway: GatewayConfig{
			BaseURL:             getEnv("GATEWAY_BASE_URL", "https://management.azure.com"),
			AzureSubscriptionID: getEnv("GATEWAY_AZURE_SUBSCRIPTION_ID", ""),
			ResourceGroup:       getEnv("GATEWAY_RESOURCE_GROUP", ""),
			ServiceName:         getEnv("GATEWAY_SERVICE_NAME", ""),
			APIVersion:          getEnv("GATEWAY_API_VERSION", ""),
			Token:               getEnv("GATEWAY_TOKEN", ""),
			TenantID:            getEnv("AZURE_TENANT_ID", ""),
			ClientID:            getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret:        getEnv("AZURE_CLIENT_SECRET", ""),
			RequestTimeout:      getSecondsEnv("GATEWAY_REQUEST_TIMEOUT_SECONDS", 30*time.Second),
			InsecureSkipVerify:  getBoolEnv("GATEWAY_TLS_INSECURE_SKIP_VERIFY", false),
		},
		Lock: LockConfig{
			Backend:       strings.ToLower(getEnv("LOCK_BACKEND", "memory")),
			TTL:           getSecondsEnv("LOCK_TTL_SECONDS", 2*time.Minute),
			RetryInterval: getMillisecondsEnv("LOCK_RETRY_INTERVAL_MS", 100*time.Millisecond),
			WaitTimeout:   getSecondsEnv("LOCK_WAIT_TIMEOUT_SECONDS", 15*time.Second),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Kafka: KafkaConfig{
			Brokers:         getListEnv("KAFKA_BROKERS"),
			DivergenceTopic: getEnv("KAFKA_DIVERGENCE_TOPIC", "api-subscriptions.divergence"),
		},
		Sync: SyncConfig{
			OperationTimeout: getSecondsEnv("GATEWAY_OPERATION_TIMEOUT_SECONDS", 60*time.Second),
		},
		Jobs: JobsConfig{
			ReconcileInterval:    getDurationEnv("RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			ReconcileStaleAfter:  getDurationEnv("RECONCILE_STALE_AFTER_MINUTES", 10*time.Minute),
			ReconcileConcurrency: getIntEnv("RECONCILE_CONCURRENCY", 4),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects timeout combinations under which a lock or a pending
// marker could expire while its gateway call is still running.
func (c *Config) validate() error {
	if c.Lock.Backend == "redis" && c.Lock.TTL <= c.Sync.OperationTimeout+c.Lock.WaitTimeout {
		return fmt.Errorf(
			"LOCK_TTL_SECONDS (%s) must exceed GATEWAY_OPERATION_TIMEOUT_SECONDS + LOCK_WAIT_TIMEOUT_SECONDS (%s)",
			c.Lock.TTL, c.Sync.OperationTimeout+c.Lock.WaitTimeout,
		)
	}
	if c.Jobs.ReconcileStaleAfter <= c.Sync.OperationTimeout {
		return fmt.Errorf(
			"RECONCILE_STALE_AFTER_MINUTES (%s) must exceed GATEWAY_OPERATION_TIMEOUT_SECONDS (%s)",
			c.Jobs.ReconcileStaleAfter, c.Sync.OperationTimeout,
		)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	return getScaledDurationEnv(key, time.Minute, defaultValue)
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	return getScaledDurationEnv(key, time.Second, defaultValue)
}

func getMillisecondsEnv(key string, defaultValue time.Duration) time.Duration {
	return getScaledDurationEnv(key, time.Millisecond, defaultValue)
}

func getScaledDurationEnv(key string, unit time.Duration, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
