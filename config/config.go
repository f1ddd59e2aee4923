package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	MinIO      MinIOConfig
	Transcoder TranscoderConfig
	Pipeline   PipelineConfig
}

type DatabaseConfig struct {
	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string
}

type ServerConfig struct {
	Port        string
	MetricsPort string
	// APIKey guards the /api routes when set. An empty key leaves them open.
	APIKey string
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
}

type TranscoderConfig struct {
	BaseURL  string
	APIToken string
}

type PipelineConfig struct {
	// Uploads above MultipartThreshold bytes go through the multipart path.
	MultipartThreshold int64
	// PartSize is assigned by the storage side, not chosen per upload.
	PartSize        int64
	PollInterval    time.Duration
	PollTimeout     time.Duration
	CompletionDelay time.Duration
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	return &Config{
		Database: DatabaseConfig{
			DBUser:     getEnv("DB_USER", "postgres"),
			DBPassword: getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "videopipeline"),
			DBHost:     getEnv("DB_HOST", "localhost"),
			DBPort:     getEnv("DB_PORT", "5432"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			MetricsPort: getEnv("METRICS_PORT", "2112"),
			APIKey:      getEnv("API_KEY", ""),
		},
		MinIO: MinIOConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:          getEnvBool("MINIO_USE_SSL", false),
			BucketName:      getEnv("MINIO_BUCKET_NAME", "videos"),
		},
		Transcoder: TranscoderConfig{
			BaseURL:  getEnv("TRANSCODER_BASE_URL", "http://localhost:9090"),
			APIToken: getEnv("TRANSCODER_API_TOKEN", ""),
		},
		Pipeline: PipelineConfig{
			MultipartThreshold: getEnvInt64("MULTIPART_THRESHOLD_BYTES", 100*1024*1024), // 100MB
			PartSize:           getEnvInt64("MULTIPART_PART_SIZE_BYTES", 50*1024*1024),  // 50MB
			PollInterval:       getEnvDuration("POLL_INTERVAL", 5*time.Second),
			PollTimeout:        getEnvDuration("POLL_TIMEOUT", 10*time.Minute),
			CompletionDelay:    getEnvDuration("COMPLETION_DELAY", 2*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
