package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	Embedding EmbeddingConfig
	Video     VideoConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
	Worker    WorkerConfig
	Upload    UploadConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	UploadPerHour int
	AIPerMin      int
	NotifyPerMin  int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type VideoConfig struct {
	ServiceURL string
	APIKey     string
	Timeout    int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type WorkerConfig struct {
	Concurrency      int
	MediumWeight     int
	LowWeight        int
	TaskTimeout      time.Duration
	StuckAfter       time.Duration
	SweepSpec        string
	BacklogThreshold int
}

// UploadConfig holds size ceilings in megabytes.
type UploadConfig struct {
	MaxDocumentMB       int64
	MaxImageMB          int64
	MaxVideoProfileMB   int64
	MaxVideoIntroMB     int64
	MaxVideoInterviewMB int64
	IntentURLExpiry     time.Duration
}

type CacheConfig struct {
	JobCapacity   int
	JobTTL        time.Duration
	TokenCapacity int
	TokenTTL      time.Duration
}

type DatabaseConfig struct {
	URL string
}

type NotifyConfig struct {
	Channel string
}

// RegisterFlags declares the command line flags understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml)")
	fs.String("port", "", "HTTP listen port")
	fs.Int("workers", 0, "number of concurrent job workers")
}

func Load(fs *pflag.FlagSet) (*Config, error) {
	// .env is a development convenience; absence is not an error
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("EMBEDDING_API_KEY")
	readSecret("VIDEO_ANALYSIS_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")
	readSecret("DATABASE_URL")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
		if f := fs.Lookup("port"); f != nil && f.Changed {
			_ = v.BindPFlag("server.port", f)
		}
		if f := fs.Lookup("workers"); f != nil && f.Changed {
			_ = v.BindPFlag("worker.concurrency", f)
		}
	}

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.log_format", "LOG_FORMAT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = v.BindEnv("ratelimit.ai_per_min", "RATELIMIT_AI_PER_MIN")
	_ = v.BindEnv("ratelimit.notify_per_min", "RATELIMIT_NOTIFY_PER_MIN")
	_ = v.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = v.BindEnv("groq.model", "GROQ_MODEL")
	_ = v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	_ = v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	_ = v.BindEnv("embedding.model", "EMBEDDING_MODEL")
	_ = v.BindEnv("video.service_url", "VIDEO_SERVICE_URL")
	_ = v.BindEnv("video.api_key", "VIDEO_ANALYSIS_API_KEY")
	_ = v.BindEnv("video.timeout", "VIDEO_SERVICE_TIMEOUT")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = v.BindEnv("worker.medium_weight", "WORKER_MEDIUM_WEIGHT")
	_ = v.BindEnv("worker.low_weight", "WORKER_LOW_WEIGHT")
	_ = v.BindEnv("worker.task_timeout", "WORKER_TASK_TIMEOUT")
	_ = v.BindEnv("worker.stuck_after", "WORKER_STUCK_AFTER")
	_ = v.BindEnv("worker.sweep_spec", "WORKER_SWEEP_SPEC")
	_ = v.BindEnv("worker.backlog_threshold", "WORKER_BACKLOG_THRESHOLD")
	_ = v.BindEnv("upload.max_document_mb", "UPLOAD_MAX_DOCUMENT_MB")
	_ = v.BindEnv("upload.max_image_mb", "UPLOAD_MAX_IMAGE_MB")
	_ = v.BindEnv("upload.max_video_profile_mb", "UPLOAD_MAX_VIDEO_PROFILE_MB")
	_ = v.BindEnv("upload.max_video_intro_mb", "UPLOAD_MAX_VIDEO_INTRO_MB")
	_ = v.BindEnv("upload.max_video_interview_mb", "UPLOAD_MAX_VIDEO_INTERVIEW_MB")
	_ = v.BindEnv("upload.intent_url_expiry", "UPLOAD_INTENT_URL_EXPIRY")
	_ = v.BindEnv("cache.job_capacity", "CACHE_JOB_CAPACITY")
	_ = v.BindEnv("cache.job_ttl", "CACHE_JOB_TTL")
	_ = v.BindEnv("cache.token_capacity", "CACHE_TOKEN_CAPACITY")
	_ = v.BindEnv("cache.token_ttl", "CACHE_TOKEN_TTL")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("notify.channel", "NOTIFY_CHANNEL")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("ratelimit.upload_per_hour", 50)
	v.SetDefault("ratelimit.ai_per_min", 30)
	v.SetDefault("ratelimit.notify_per_min", 120)

	// Provider defaults
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("video.service_url", "http://localhost:8085")
	v.SetDefault("video.timeout", 300)

	v.SetDefault("gateway.enabled", false)

	// Worker defaults
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.medium_weight", 6)
	v.SetDefault("worker.low_weight", 3)
	v.SetDefault("worker.task_timeout", "15m")
	v.SetDefault("worker.stuck_after", "30m")
	v.SetDefault("worker.sweep_spec", "@every 5m")
	v.SetDefault("worker.backlog_threshold", 500)

	v.SetDefault("upload.max_document_mb", 5)
	v.SetDefault("upload.max_image_mb", 5)
	v.SetDefault("upload.max_video_profile_mb", 10)
	v.SetDefault("upload.max_video_intro_mb", 100)
	v.SetDefault("upload.max_video_interview_mb", 500)
	v.SetDefault("upload.intent_url_expiry", "15m")

	v.SetDefault("cache.job_capacity", 1000)
	v.SetDefault("cache.job_ttl", "10m")
	v.SetDefault("cache.token_capacity", 5000)
	v.SetDefault("cache.token_ttl", "1m")

	v.SetDefault("notify.channel", "notifications")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			LogFormat: v.GetString("server.log_format"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			UploadPerHour: v.GetInt("ratelimit.upload_per_hour"),
			AIPerMin:      v.GetInt("ratelimit.ai_per_min"),
			NotifyPerMin:  v.GetInt("ratelimit.notify_per_min"),
		},
		Groq: GroqConfig{
			APIKey:  v.GetString("groq.api_key"),
			BaseURL: v.GetString("groq.base_url"),
			Model:   v.GetString("groq.model"),
		},
		Embedding: EmbeddingConfig{
			APIKey:  v.GetString("embedding.api_key"),
			BaseURL: v.GetString("embedding.base_url"),
			Model:   v.GetString("embedding.model"),
		},
		Video: VideoConfig{
			ServiceURL: v.GetString("video.service_url"),
			APIKey:     v.GetString("video.api_key"),
			Timeout:    v.GetInt("video.timeout"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		Worker: WorkerConfig{
			Concurrency:      v.GetInt("worker.concurrency"),
			MediumWeight:     v.GetInt("worker.medium_weight"),
			LowWeight:        v.GetInt("worker.low_weight"),
			TaskTimeout:      v.GetDuration("worker.task_timeout"),
			StuckAfter:       v.GetDuration("worker.stuck_after"),
			SweepSpec:        v.GetString("worker.sweep_spec"),
			BacklogThreshold: v.GetInt("worker.backlog_threshold"),
		},
		Upload: UploadConfig{
			MaxDocumentMB:       v.GetInt64("upload.max_document_mb"),
			MaxImageMB:          v.GetInt64("upload.max_image_mb"),
			MaxVideoProfileMB:   v.GetInt64("upload.max_video_profile_mb"),
			MaxVideoIntroMB:     v.GetInt64("upload.max_video_intro_mb"),
			MaxVideoInterviewMB: v.GetInt64("upload.max_video_interview_mb"),
			IntentURLExpiry:     v.GetDuration("upload.intent_url_expiry"),
		},
		Cache: CacheConfig{
			JobCapacity:   v.GetInt("cache.job_capacity"),
			JobTTL:        v.GetDuration("cache.job_ttl"),
			TokenCapacity: v.GetInt("cache.token_capacity"),
			TokenTTL:      v.GetDuration("cache.token_ttl"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Notify: NotifyConfig{
			Channel: v.GetString("notify.channel"),
		},
	}

	return cfg, nil
}

// MaxBodyBytes is the largest request body the HTTP server must accept.
func (c *Config) MaxBodyBytes() int {
	largest := c.Upload.MaxVideoInterviewMB
	for _, mb := range []int64{c.Upload.MaxDocumentMB, c.Upload.MaxImageMB, c.Upload.MaxVideoProfileMB, c.Upload.MaxVideoIntroMB} {
		if mb > largest {
			largest = mb
		}
	}
	// headroom for multipart framing and form fields
	return int((largest + 1) * 1024 * 1024)
}
