package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Stock     StockConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
	HTTPAddr string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	LockTimeoutMS   int
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StockTTL time.Duration
}

type KafkaConfig struct {
	Brokers          []string
	ConsumptionTopic string
	EventsTopic      string
	GroupID          string
}

// StockConfig holds the business knobs of the ledger and the handover flow.
type StockConfig struct {
	AlertWindow      time.Duration
	PINLength        int
	PINExpiry        time.Duration
	PINSalt          string
	PINIterations    int
	SignatureMaxSize int
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

func LoadEnv() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Server: ServerConfig{
			AppEnv:   v.GetString("APP_ENV"),
			GRPCPort: v.GetString("GRPC_PORT"),
			HTTPAddr: v.GetString("HTTP_ADDR"),
		},
		Logger: LoggerConfig{
			Level:             v.GetString("LOGGER_LEVEL"),
			Encoding:          v.GetString("LOGGER_ENCODING"),
			DisableCaller:     v.GetBool("LOGGER_DISABLE_CALLER"),
			DisableStacktrace: v.GetBool("LOGGER_DISABLE_STACKTRACE"),
		},
		Postgres: PostgresConfig{
			Host:            v.GetString("POSTGRES_HOST"),
			Port:            v.GetString("POSTGRES_PORT"),
			User:            v.GetString("POSTGRES_USER"),
			Password:        v.GetString("POSTGRES_PASSWORD"),
			DBName:          v.GetString("POSTGRES_DB"),
			SSLMode:         v.GetString("POSTGRES_SSLMODE"),
			MaxOpenConns:    v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetInt("POSTGRES_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetInt("POSTGRES_CONN_MAX_IDLE_TIME"),
			LockTimeoutMS:   v.GetInt("POSTGRES_LOCK_TIMEOUT_MS"),
			AutoMigrate:     v.GetBool("POSTGRES_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			StockTTL: v.GetDuration("REDIS_STOCK_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:          splitList(v.GetString("KAFKA_BROKERS")),
			ConsumptionTopic: v.GetString("KAFKA_TOPIC_CONSUMPTION"),
			EventsTopic:      v.GetString("KAFKA_TOPIC_EVENTS"),
			GroupID:          v.GetString("KAFKA_GROUP_STOCK"),
		},
		Stock: StockConfig{
			AlertWindow:      v.GetDuration("STOCK_ALERT_WINDOW"),
			PINLength:        v.GetInt("PIN_LENGTH"),
			PINExpiry:        v.GetDuration("PIN_EXPIRY"),
			PINSalt:          v.GetString("PIN_SALT"),
			PINIterations:    v.GetInt("PIN_ITERATIONS"),
			SignatureMaxSize: v.GetInt("SIGNATURE_MAX_SIZE"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Tracing: TracingConfig{
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("GRPC_PORT", ":8083")
	v.SetDefault("HTTP_ADDR", ":9093")

	v.SetDefault("LOGGER_LEVEL", "debug")
	v.SetDefault("LOGGER_ENCODING", "console")
	v.SetDefault("LOGGER_DISABLE_CALLER", false)
	v.SetDefault("LOGGER_DISABLE_STACKTRACE", true)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5433")
	v.SetDefault("POSTGRES_USER", "omnipos")
	v.SetDefault("POSTGRES_PASSWORD", "omnipos")
	v.SetDefault("POSTGRES_DB", "omnipos_stock")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 10)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME", 300)
	v.SetDefault("POSTGRES_CONN_MAX_IDLE_TIME", 60)
	v.SetDefault("POSTGRES_LOCK_TIMEOUT_MS", 5000)
	v.SetDefault("POSTGRES_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_STOCK_TTL", "5m")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC_CONSUMPTION", "stock.consumption")
	v.SetDefault("KAFKA_TOPIC_EVENTS", "stock.events")
	v.SetDefault("KAFKA_GROUP_STOCK", "stock")

	v.SetDefault("STOCK_ALERT_WINDOW", "24h")
	v.SetDefault("PIN_LENGTH", 6)
	v.SetDefault("PIN_EXPIRY", "15m")
	v.SetDefault("PIN_SALT", "stock_system_salt")
	v.SetDefault("PIN_ITERATIONS", 100000)
	v.SetDefault("SIGNATURE_MAX_SIZE", 50000)

	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "omnipos-stock-service")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
