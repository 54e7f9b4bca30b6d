package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	GigaChat  GigaChatConfig
	Storage   StorageConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

// StorageConfig selects the blob backend. Backend is one of "s3", "redis" or "memory".
type StorageConfig struct {
	Backend       string
	Bucket        string
	Region        string
	Endpoint      string // S3-compatible endpoint (MinIO, LocalStack); empty for AWS
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	TokenPrefix   string
	ReceiptPrefix string
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool
}

type RateLimitConfig struct {
	ValidateRPS   float64
	ValidateBurst int
	AuthRPS       float64
	AuthBurst     int
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work for containers
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	bodyLimitMB, _ := strconv.Atoi(getEnv("SERVER_BODY_LIMIT_MB", "12"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	dbMaxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	dbMinConns, _ := strconv.Atoi(getEnv("DB_MIN_CONNS", "1"))
	dbConnLifetime, _ := strconv.Atoi(getEnv("DB_MAX_CONN_LIFETIME_MINUTES", "30"))
	dbConnectTimeout, _ := strconv.Atoi(getEnv("DB_CONNECT_TIMEOUT_SECONDS", "5"))
	validateRPS, err := strconv.ParseFloat(getEnv("VOICE_VALIDATE_RPS", "1"), 64)
	if err != nil {
		validateRPS = 1
	}
	validateBurst, _ := strconv.Atoi(getEnv("VOICE_VALIDATE_BURST", "5"))
	authRPS, err := strconv.ParseFloat(getEnv("AUTH_RPS", "0.5"), 64)
	if err != nil {
		authRPS = 0.5
	}
	authBurst, _ := strconv.Atoi(getEnv("AUTH_BURST", "10"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
			BodyLimit:    bodyLimitMB << 20,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "expense_tracker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxConns:        int32(dbMaxConns),
			MinConns:        int32(dbMinConns),
			MaxConnLifetime: time.Duration(dbConnLifetime) * time.Minute,
			ConnectTimeout:  time.Duration(dbConnectTimeout) * time.Second,
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "s3"),
			Bucket:        getEnv("STORAGE_BUCKET", "expense-tracker"),
			Region:        getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:      getEnv("STORAGE_ENDPOINT", ""),
			AccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
			UsePathStyle:  getEnv("STORAGE_USE_PATH_STYLE", "false") == "true",
			TokenPrefix:   getEnv("STORAGE_TOKEN_PREFIX", "voice-tokens/"),
			ReceiptPrefix: getEnv("STORAGE_RECEIPT_PREFIX", "receipts/"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TLS:      getEnv("REDIS_TLS", "false") == "true",
		},
		RateLimit: RateLimitConfig{
			ValidateRPS:   validateRPS,
			ValidateBurst: validateBurst,
			AuthRPS:       authRPS,
			AuthBurst:     authBurst,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
