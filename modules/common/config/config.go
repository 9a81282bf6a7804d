package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreSupabase = "supabase"
	StoreSQLite   = "sqlite"
)

// Rate limit backends
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Library sources
const (
	LibraryFS = "fs"
	LibraryS3 = "s3"
)

// Gemini backends
const (
	GeminiBackendAPI    = "gemini"
	GeminiBackendVertex = "vertex"
)

const defaultInitialCredits = 3

// Config 구조체 - 모든 설정값을 담음 (TOML 파일 → 환경변수 순으로 덮어씀)
type Config struct {
	// Server
	Port           string        `toml:"port"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	AllowedOrigin  string        `toml:"allowed_origin"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`

	// Store
	StoreBackend string `toml:"store_backend"`
	SQLitePath   string `toml:"sqlite_path"`

	// Supabase
	SupabaseURL           string `toml:"supabase_url"`
	SupabaseServiceKey    string `toml:"supabase_service_key"`
	SupabaseStorageBucket string `toml:"supabase_storage_bucket"`

	// Redis
	RedisHost     string `toml:"redis_host"`
	RedisPort     string `toml:"redis_port"`
	RedisUsername string `toml:"redis_username"`
	RedisPassword string `toml:"redis_password"`
	RedisUseTLS   bool   `toml:"redis_use_tls"`

	// Rate limit
	RateLimitBackend string        `toml:"rate_limit_backend"`
	RateLimitMax     int           `toml:"rate_limit_max"`
	RateLimitWindow  time.Duration `toml:"rate_limit_window"`
	RateLimitCleanup time.Duration `toml:"rate_limit_cleanup"`

	// Gemini
	GeminiBackend         string        `toml:"gemini_backend"`
	GeminiAPIKey          string        `toml:"gemini_api_key"`
	VertexProject         string        `toml:"vertex_project"`
	VertexLocation        string        `toml:"vertex_location"`
	VertexCredentialsJSON string        `toml:"vertex_credentials_json"`
	VertexCredentialsPath string        `toml:"vertex_credentials_path"`
	AnalysisModel         string        `toml:"analysis_model"`
	EnhanceModel          string        `toml:"enhance_model"`
	ImageModel            string        `toml:"image_model"`
	NotificationModel     string        `toml:"notification_model"`
	EnhanceTimeout        time.Duration `toml:"enhance_timeout"`
	EnhanceRetryInterval  time.Duration `toml:"enhance_retry_interval"`
	UpstreamRPS           float64       `toml:"upstream_rps"`
	UpstreamBurst         int           `toml:"upstream_burst"`

	// Credit
	InitialUserCredits int `toml:"initial_user_credits"`
	CreditsPerImage    int `toml:"credits_per_image"`

	// Reference library
	LibrarySource  string `toml:"library_source"`
	LibraryDir     string `toml:"library_dir"`
	S3Bucket       string `toml:"s3_bucket"`
	S3Prefix       string `toml:"s3_prefix"`
	S3Region       string `toml:"s3_region"`
	S3BaseEndpoint string `toml:"s3_base_endpoint"`

	// Auth
	JWTPublicKeyPEM  string `toml:"jwt_public_key_pem"`
	JWTPublicKeyPath string `toml:"jwt_public_key_path"`
	JWTSecret        string `toml:"jwt_secret"`
	JWTIssuer        string `toml:"jwt_issuer"`

	// i18n
	DefaultLanguage string `toml:"default_language"`
}

// Default - 기본값
func Default() *Config {
	return &Config{
		Port:           "8080",
		RequestTimeout: 120 * time.Second,
		AllowedOrigin:  "*",

		LogLevel:  "info",
		LogFormat: "console",

		StoreBackend: StoreSupabase,
		SQLitePath:   "data/razza.db",

		SupabaseStorageBucket: "generations",

		RedisHost:   "localhost",
		RedisPort:   "6379",
		RedisUseTLS: true,

		RateLimitBackend: RateLimitMemory,
		RateLimitMax:     10,
		RateLimitWindow:  60 * time.Second,
		RateLimitCleanup: 5 * time.Minute,

		GeminiBackend:        GeminiBackendAPI,
		VertexLocation:       "us-central1",
		AnalysisModel:        "gemini-2.5-flash",
		EnhanceModel:         "gemini-flash-lite-latest",
		ImageModel:           "gemini-2.5-flash-image",
		NotificationModel:    "gemini-2.0-flash",
		EnhanceTimeout:       1800 * time.Millisecond,
		EnhanceRetryInterval: 50 * time.Millisecond,
		UpstreamRPS:          5,
		UpstreamBurst:        5,

		InitialUserCredits: defaultInitialCredits,
		CreditsPerImage:    1,

		LibrarySource: LibraryFS,
		LibraryDir:    "assets/component-images",
		S3Region:      "us-east-1",

		DefaultLanguage: "en",
	}
}

// LoadConfig - .env, TOML 파일(선택), 환경변수 순서로 설정 로드
func LoadConfig(path string) (*Config, error) {
	// .env 파일 로드 (있으면)
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString(&c.Port, "PORT")
	envString(&c.AllowedOrigin, "ALLOWED_ORIGIN")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.LogFormat, "LOG_FORMAT")
	envString(&c.LogFile, "LOG_FILE")

	envString(&c.StoreBackend, "STORE_BACKEND")
	envString(&c.SQLitePath, "SQLITE_PATH")

	envString(&c.SupabaseURL, "SUPABASE_URL")
	envString(&c.SupabaseServiceKey, "SUPABASE_SERVICE_KEY")
	envString(&c.SupabaseStorageBucket, "SUPABASE_STORAGE_BUCKET")

	envString(&c.RedisHost, "REDIS_HOST")
	envString(&c.RedisPort, "REDIS_PORT")
	envString(&c.RedisUsername, "REDIS_USERNAME")
	envString(&c.RedisPassword, "REDIS_PASSWORD")

	envString(&c.RateLimitBackend, "RATE_LIMIT_BACKEND")

	envString(&c.GeminiBackend, "GEMINI_BACKEND")
	envString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	envString(&c.VertexProject, "VERTEXAI_PROJECT")
	envString(&c.VertexLocation, "VERTEXAI_LOCATION")
	envString(&c.VertexCredentialsJSON, "VERTEXAI_CREDENTIALS_JSON")
	envString(&c.VertexCredentialsPath, "VERTEXAI_CREDENTIALS_PATH")
	envString(&c.AnalysisModel, "ANALYSIS_MODEL")
	envString(&c.EnhanceModel, "ENHANCE_MODEL")
	envString(&c.ImageModel, "IMAGE_MODEL")
	envString(&c.NotificationModel, "NOTIFICATION_MODEL")

	envString(&c.LibrarySource, "LIBRARY_SOURCE")
	envString(&c.LibraryDir, "LIBRARY_DIR")
	envString(&c.S3Bucket, "LIBRARY_S3_BUCKET")
	envString(&c.S3Prefix, "LIBRARY_S3_PREFIX")
	envString(&c.S3Region, "LIBRARY_S3_REGION")
	envString(&c.S3BaseEndpoint, "LIBRARY_S3_ENDPOINT")

	envString(&c.JWTPublicKeyPEM, "JWT_PUBLIC_KEY")
	envString(&c.JWTPublicKeyPath, "JWT_PUBLIC_KEY_PATH")
	envString(&c.JWTSecret, "JWT_SECRET")
	envString(&c.JWTIssuer, "JWT_ISSUER")

	envString(&c.DefaultLanguage, "DEFAULT_LANGUAGE")

	if err := envBool(&c.RedisUseTLS, "REDIS_USE_TLS"); err != nil {
		return err
	}
	if err := envInt(&c.RateLimitMax, "RATE_LIMIT_MAX"); err != nil {
		return err
	}
	if err := envInt(&c.CreditsPerImage, "CREDITS_PER_IMAGE"); err != nil {
		return err
	}
	if err := envInt(&c.UpstreamBurst, "UPSTREAM_BURST"); err != nil {
		return err
	}
	if err := envFloat(&c.UpstreamRPS, "UPSTREAM_RPS"); err != nil {
		return err
	}

	durations := []struct {
		target *time.Duration
		key    string
	}{
		{&c.RequestTimeout, "REQUEST_TIMEOUT"},
		{&c.RateLimitWindow, "RATE_LIMIT_WINDOW"},
		{&c.RateLimitCleanup, "RATE_LIMIT_CLEANUP"},
		{&c.EnhanceTimeout, "ENHANCE_TIMEOUT"},
		{&c.EnhanceRetryInterval, "ENHANCE_RETRY_INTERVAL"},
	}
	for _, d := range durations {
		if err := envDuration(d.target, d.key); err != nil {
			return err
		}
	}

	// INITIAL_USER_CREDITS - 잘못된 값이면 기본값 유지
	if v := os.Getenv("INITIAL_USER_CREDITS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.InitialUserCredits = n
		} else {
			c.InitialUserCredits = defaultInitialCredits
		}
	}
	return nil
}

func (c *Config) normalize() {
	if c.InitialUserCredits < 0 {
		c.InitialUserCredits = defaultInitialCredits
	}
	if c.CreditsPerImage <= 0 {
		c.CreditsPerImage = 1
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
	c.LibrarySource = strings.ToLower(strings.TrimSpace(c.LibrarySource))
	c.GeminiBackend = strings.ToLower(strings.TrimSpace(c.GeminiBackend))
	c.SupabaseURL = strings.TrimRight(c.SupabaseURL, "/")
}

// Validate - 선택된 백엔드에 필요한 값 검증
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}

	switch c.RateLimitBackend {
	case RateLimitMemory:
	case RateLimitRedis:
		if c.RedisHost == "" {
			return fmt.Errorf("REDIS_HOST is required")
		}
	default:
		return fmt.Errorf("unknown rate limit backend: %s", c.RateLimitBackend)
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit max and window must be positive")
	}

	switch c.GeminiBackend {
	case GeminiBackendAPI:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case GeminiBackendVertex:
		if c.VertexProject == "" {
			return fmt.Errorf("VERTEXAI_PROJECT is required")
		}
	default:
		return fmt.Errorf("unknown gemini backend: %s", c.GeminiBackend)
	}

	switch c.LibrarySource {
	case LibraryFS:
	case LibraryS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("LIBRARY_S3_BUCKET is required")
		}
	default:
		return fmt.Errorf("unknown library source: %s", c.LibrarySource)
	}

	if c.JWTPublicKeyPEM == "" && c.JWTPublicKeyPath == "" && c.JWTSecret == "" {
		return fmt.Errorf("one of JWT_PUBLIC_KEY, JWT_PUBLIC_KEY_PATH or JWT_SECRET is required")
	}
	return nil
}

// GetRedisAddr - Redis 주소 반환
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// StorageEnabled - 생성 이미지를 Supabase Storage 에 올릴 수 있는지
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != "" && c.SupabaseStorageBucket != ""
}

func envString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func envBool(target *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func envInt(target *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func envFloat(target *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func envDuration(target *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = parsed
	return nil
}
