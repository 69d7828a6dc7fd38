package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageDriverMySQL  = "mysql"
	StorageDriverMemory = "memory"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	Storage           StorageConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Swish             SwishConfig
	Payments          PaymentsConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type StorageConfig struct {
	Driver string
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

type SwishConfig struct {
	BaseURL     string
	CertPath    string
	KeyPath     string
	CAPath      string
	PayeeAlias  string
	CallbackURL string
	HTTPTimeout time.Duration
}

type PaymentsConfig struct {
	UnitPrice           decimal.Decimal
	Currency            string
	Message             string
	ReceiptBaseURL      string
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	SettleInterval    time.Duration
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverMySQL))
	if driver != StorageDriverMySQL && driver != StorageDriverMemory {
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageDriverMySQL, StorageDriverMemory)
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if driver == StorageDriverMySQL && mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	unitPrice, err := decimal.NewFromString(getEnv("PAYMENTS_UNIT_PRICE", "10"))
	if err != nil {
		return nil, fmt.Errorf("PAYMENTS_UNIT_PRICE is not a valid decimal: %w", err)
	}
	if !unitPrice.IsPositive() {
		return nil, errors.New("PAYMENTS_UNIT_PRICE must be > 0")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "kiosk-payments"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		Storage: StorageConfig{
			Driver: driver,
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", ""),
		},
		Swish: SwishConfig{
			BaseURL:     getEnv("SWISH_BASE_URL", "https://mss.cpc.getswish.net/swish-cpcapi"),
			CertPath:    getEnv("SWISH_CERT_PATH", ""),
			KeyPath:     getEnv("SWISH_KEY_PATH", ""),
			CAPath:      getEnv("SWISH_CA_PATH", ""),
			PayeeAlias:  getEnv("SWISH_PAYEE_ALIAS", ""),
			CallbackURL: getEnv("SWISH_CALLBACK_URL", ""),
			HTTPTimeout: getSecondsEnv("SWISH_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Payments: PaymentsConfig{
			UnitPrice:           unitPrice,
			Currency:            strings.ToUpper(getEnv("PAYMENTS_CURRENCY", "SEK")),
			Message:             getEnv("PAYMENTS_MESSAGE", ""),
			ReceiptBaseURL:      getEnv("PAYMENTS_RECEIPT_BASE_URL", ""),
			ReconcileStaleAfter: getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 5*time.Minute),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			SettleInterval:    getSecondsEnv("PAYMENTS_SETTLE_INTERVAL_SECONDS", 5*time.Second),
			ReconcileInterval: getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
