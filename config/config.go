package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	LogLevel   string
	LogFile    string
	LogMaxSize int // MB

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// 预设库数据库：mysql 或 sqlite
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// MinIO 资源缓存
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	AssetPrefix    string // 对象名前缀，例如 "bgm/"

	// 设置存储：file 或 redis
	SettingsBackend string
	SettingsFile    string
	PersistDelay    time.Duration

	// 音频总线
	FadeDuration  time.Duration
	FadeFrameTime time.Duration

	// 控制接口
	JWTSecret     string
	TickRateLimit float64 // 每秒允许的 tick 次数
	TickBurst     int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration 接受 time.ParseDuration 格式，例如 "120ms"
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", ""),
		LogMaxSize: getEnvInt("LOG_MAX_SIZE", 50),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // 密码不设默认值
		DBName:     getEnv("DB_NAME", "chatbgm"),
		SQLitePath: getEnv("SQLITE_PATH", "data/presets.db"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "chatbgm"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		AssetPrefix:    getEnv("ASSET_PREFIX", "assets/"),

		SettingsBackend: strings.ToLower(getEnv("SETTINGS_BACKEND", "file")),
		SettingsFile:    getEnv("SETTINGS_FILE", "data/settings.yaml"),
		PersistDelay:    getEnvDuration("PERSIST_DELAY", 500*time.Millisecond),

		FadeDuration:  getEnvDuration("FADE_DURATION", 120*time.Millisecond),
		FadeFrameTime: getEnvDuration("FADE_FRAME", 16*time.Millisecond),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		TickRateLimit: getEnvFloat("TICK_RATE_LIMIT", 10),
		TickBurst:     getEnvInt("TICK_BURST", 20),
	}
}
