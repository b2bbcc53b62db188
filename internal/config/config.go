package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pickperfect/api/internal/common"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

// loadEnvFiles loads local env files when present. Values already in the
// environment win.
func loadEnvFiles() {
	for _, name := range []string{".env.development", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Mongo     MongoConfig
	FFmpeg    FFmpegConfig
	Pipeline  PipelineConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	EmbeddedWorker bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	UploadURLTTL    time.Duration
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type FFmpegConfig struct {
	Binary  string
	Timeout time.Duration // zero means no bound
}

type PipelineConfig struct {
	ScratchDir          string
	MarkFailed          bool
	DownloadRetryWindow time.Duration
}

type WorkerConfig struct {
	Concurrency int
	MaxRetry    int
	Queue       string
}

type RateLimitConfig struct {
	UploadPerHour int
}

func Load() (*Config, error) {
	loadEnvFiles()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("AWS_ACCESS_KEY_ID")
	readSecret("AWS_SECRET_ACCESS_KEY")
	readSecret("MONGO_URI")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.embedded_worker", "EMBEDDED_WORKER")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("storage.bucket", "AWS_S3_BUCKET")
	_ = v.BindEnv("storage.access_key_id", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.region", "AWS_REGION")
	_ = v.BindEnv("storage.endpoint", "AWS_S3_ENDPOINT")
	_ = v.BindEnv("storage.force_path_style", "AWS_S3_FORCE_PATH_STYLE")
	_ = v.BindEnv("storage.upload_url_ttl", "UPLOAD_URL_TTL")
	_ = v.BindEnv("mongo.uri", "MONGO_URI")
	_ = v.BindEnv("mongo.database", "MONGO_DB")
	_ = v.BindEnv("mongo.collection", "MONGO_COLLECTION")
	_ = v.BindEnv("ffmpeg.binary", "FFMPEG_BINARY")
	_ = v.BindEnv("ffmpeg.timeout", "FFMPEG_TIMEOUT")
	_ = v.BindEnv("pipeline.scratch_dir", "SCRATCH_DIR")
	_ = v.BindEnv("pipeline.mark_failed", "PIPELINE_MARK_FAILED")
	_ = v.BindEnv("pipeline.download_retry_window", "DOWNLOAD_RETRY_WINDOW")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.max_retry", "WORKER_MAX_RETRY")
	_ = v.BindEnv("worker.queue", "WORKER_QUEUE")
	_ = v.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.embedded_worker", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.force_path_style", false)
	v.SetDefault("storage.upload_url_ttl", time.Hour)
	v.SetDefault("mongo.database", "pickperfect_db")
	v.SetDefault("mongo.collection", "videos")
	v.SetDefault("ffmpeg.binary", "ffmpeg")
	v.SetDefault("ffmpeg.timeout", time.Duration(0))
	v.SetDefault("pipeline.scratch_dir", "")
	v.SetDefault("pipeline.mark_failed", true)
	v.SetDefault("pipeline.download_retry_window", 10*time.Second)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.max_retry", 0)
	v.SetDefault("worker.queue", "analysis")
	v.SetDefault("ratelimit.upload_per_hour", 50)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			Env:            v.GetString("server.env"),
			LogLevel:       v.GetString("server.log_level"),
			EmbeddedWorker: v.GetBool("server.embedded_worker"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			ForcePathStyle:  v.GetBool("storage.force_path_style"),
			UploadURLTTL:    v.GetDuration("storage.upload_url_ttl"),
		},
		Mongo: MongoConfig{
			URI:        v.GetString("mongo.uri"),
			Database:   v.GetString("mongo.database"),
			Collection: v.GetString("mongo.collection"),
		},
		FFmpeg: FFmpegConfig{
			Binary:  v.GetString("ffmpeg.binary"),
			Timeout: v.GetDuration("ffmpeg.timeout"),
		},
		Pipeline: PipelineConfig{
			ScratchDir:          v.GetString("pipeline.scratch_dir"),
			MarkFailed:          v.GetBool("pipeline.mark_failed"),
			DownloadRetryWindow: v.GetDuration("pipeline.download_retry_window"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
			MaxRetry:    v.GetInt("worker.max_retry"),
			Queue:       v.GetString("worker.queue"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
		},
	}

	return cfg, nil
}

// Validate reports every missing required setting at once so a process
// fails at startup instead of in the middle of a job.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"AWS_S3_BUCKET", c.Storage.Bucket},
		{"AWS_ACCESS_KEY_ID", c.Storage.AccessKeyID},
		{"AWS_SECRET_ACCESS_KEY", c.Storage.SecretAccessKey},
		{"AWS_REGION", c.Storage.Region},
		{"MONGO_URI", c.Mongo.URI},
		{"MONGO_DB", c.Mongo.Database},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return common.NewConfigurationError("missing required setting", missing...)
	}

	if c.Worker.Concurrency < 1 {
		return common.NewConfigurationError("must be at least 1", "WORKER_CONCURRENCY")
	}
	if c.Worker.MaxRetry < 0 {
		return common.NewConfigurationError("must not be negative", "WORKER_MAX_RETRY")
	}
	if c.FFmpeg.Timeout < 0 {
		return common.NewConfigurationError("must not be negative", "FFMPEG_TIMEOUT")
	}
	return nil
}

// IsDevelopment reports whether the server runs with local defaults
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "" || strings.EqualFold(c.Server.Env, "development") || strings.EqualFold(c.Server.Env, "local")
}
