package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	HTTP        ServerConfig
	MySQL       MySQLConfig
	Log         LogConfig
	OrangeMoney WalletProviderConfig
	Wave        WalletProviderConfig
	FreeMoney   WalletProviderConfig
	PayDunya    GatewayProviderConfig
	CinetPay    GatewayProviderConfig
	Payments    PaymentsConfig
	Jobs        JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
	BaseURL     string
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

// WalletProviderConfig covers the mobile-money backends (Orange Money, Wave,
// Free Money). TestMode bypasses webhook signature verification and must stay
// off outside sandbox environments.
type WalletProviderConfig struct {
	APIKey        string
	APISecret     string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
	TestMode      bool
}

type GatewayProviderConfig struct {
	MasterKey     string
	PrivateKey    string
	SiteID        string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
	TestMode      bool
}

type PaymentsConfig struct {
	PendingTTL          time.Duration
	PollInterval        time.Duration
	ReconcileWorkers    int
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
	SimulatedProviders  bool
	NotifierBuffer      int
}

type JobsConfig struct {
	ReconcileInterval     time.Duration
	ExpirePendingInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "wali-payments"),
			APIKey:      getEnv("APP_API_KEY", ""),
			BaseURL:     getEnv("APP_BASE_URL", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
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
		OrangeMoney: WalletProviderConfig{
			APIKey:        getEnv("ORANGE_MONEY_API_KEY", ""),
			APISecret:     getEnv("ORANGE_MONEY_API_SECRET", ""),
			WebhookSecret: getEnv("ORANGE_MONEY_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("ORANGE_MONEY_BASE_URL", "https://api.orange-sonatel.com"),
			HTTPTimeout:   getSecondsEnv("ORANGE_MONEY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			TestMode:      getBoolEnv("ORANGE_MONEY_TEST_MODE", false),
		},
		Wave: WalletProviderConfig{
			APIKey:        getEnv("WAVE_API_KEY", ""),
			APISecret:     getEnv("WAVE_API_SECRET", ""),
			WebhookSecret: getEnv("WAVE_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("WAVE_BASE_URL", "https://api.wave.com"),
			HTTPTimeout:   getSecondsEnv("WAVE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			TestMode:      getBoolEnv("WAVE_TEST_MODE", false),
		},
		FreeMoney: WalletProviderConfig{
			APIKey:        getEnv("FREE_MONEY_API_KEY", ""),
			APISecret:     getEnv("FREE_MONEY_API_SECRET", ""),
			WebhookSecret: getEnv("FREE_MONEY_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("FREE_MONEY_BASE_URL", "https://api.freemoney.sn"),
			HTTPTimeout:   getSecondsEnv("FREE_MONEY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			TestMode:      getBoolEnv("FREE_MONEY_TEST_MODE", false),
		},
		PayDunya: GatewayProviderConfig{
			MasterKey:     getEnv("PAYDUNYA_MASTER_KEY", ""),
			PrivateKey:    getEnv("PAYDUNYA_PRIVATE_KEY", ""),
			SiteID:        getEnv("PAYDUNYA_TOKEN", ""),
			WebhookSecret: getEnv("PAYDUNYA_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("PAYDUNYA_BASE_URL", "https://app.paydunya.com/api"),
			HTTPTimeout:   getSecondsEnv("PAYDUNYA_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			TestMode:      getBoolEnv("PAYDUNYA_TEST_MODE", false),
		},
		CinetPay: GatewayProviderConfig{
			MasterKey:     getEnv("CINETPAY_API_KEY", ""),
			PrivateKey:    getEnv("CINETPAY_SECRET_KEY", ""),
			SiteID:        getEnv("CINETPAY_SITE_ID", ""),
			WebhookSecret: getEnv("CINETPAY_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("CINETPAY_BASE_URL", "https://api-checkout.cinetpay.com"),
			HTTPTimeout:   getSecondsEnv("CINETPAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			TestMode:      getBoolEnv("CINETPAY_TEST_MODE", false),
		},
		Payments: PaymentsConfig{
			PendingTTL:          getMinutesEnv("PAYMENTS_PENDING_TTL_MINUTES", 30*time.Minute),
			PollInterval:        getSecondsEnv("PAYMENTS_POLL_INTERVAL_SECONDS", 30*time.Second),
			ReconcileWorkers:    getIntEnv("PAYMENTS_RECONCILE_WORKERS", 4),
			ReconcileStaleAfter: getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 5*time.Minute),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
			SimulatedProviders:  getBoolEnv("PAYMENTS_SIMULATED_PROVIDERS", false),
			NotifierBuffer:      getIntEnv("PAYMENTS_NOTIFIER_BUFFER", 64),
		},
		Jobs: JobsConfig{
			ReconcileInterval:     getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			ExpirePendingInterval: getMinutesEnv("PAYMENTS_EXPIRE_PENDING_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
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
