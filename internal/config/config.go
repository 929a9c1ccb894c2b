package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Watchtower server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	AI          AIConfig
	Monitor     MonitorConfig
	Entitlement EntitlementConfig
	Snapshot    SnapshotConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	AnalysisEnabled  bool
	Temperature      float64
	InferenceTimeout time.Duration
	Gemini           GeminiConfig
	OpenAI           OpenAIConfig
	Ollama           OllamaConfig
	VLLM             VLLMConfig
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OllamaConfig and VLLMConfig target the OpenAI-compatible endpoints those servers expose.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type MonitorConfig struct {
	TickInterval time.Duration
	FetchTimeout time.Duration
	Workers      int
	UserAgent    string
	CronKey      string
	LockTTL      time.Duration
}

type EntitlementConfig struct {
	// Plans lists plan ids granted AI analysis when no catalog file is set.
	Plans     []string
	PlansFile string
	CacheTTL  time.Duration
}

type SnapshotConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether page snapshots should be archived.
func (s SnapshotConfig) Enabled() bool {
	return s.Endpoint != ""
}

var validProviders = map[string]bool{
	"gemini": true,
	"openai": true,
	"ollama": true,
	"vllm":   true,
	"mock":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("WATCHTOWER_PORT", 8080),
			Env:                envString("WATCHTOWER_ENV", "development"),
			LogLevel:           strings.ToLower(envString("LOG_LEVEL", "info")),
			CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", nil),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			AnalysisEnabled:  envBool("AI_ANALYSIS_ENABLED", true),
			Temperature:      envFloat("AI_TEMPERATURE", 0.2),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-2.5-flash"),
				BaseURL: os.Getenv("GEMINI_BASE_URL"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000/v1"),
				Model:   envString("VLLM_MODEL", ""),
			},
		},
		Monitor: MonitorConfig{
			TickInterval: envDuration("MONITOR_TICK_INTERVAL", 60*time.Second),
			FetchTimeout: envDuration("MONITOR_FETCH_TIMEOUT", 10*time.Second),
			Workers:      envInt("MONITOR_WORKERS", 4),
			UserAgent:    os.Getenv("MONITOR_USER_AGENT"),
			CronKey:      os.Getenv("CRON_KEY"),
			LockTTL:      envDuration("MONITOR_LOCK_TTL", 10*time.Minute),
		},
		Entitlement: EntitlementConfig{
			Plans:     envList("ENTITLED_PLANS", nil),
			PlansFile: os.Getenv("ENTITLEMENTS_FILE"),
			CacheTTL:  envDuration("ENTITLEMENT_CACHE_TTL", 60*time.Second),
		},
		Snapshot: SnapshotConfig{
			Endpoint:  os.Getenv("SNAPSHOT_ENDPOINT"),
			AccessKey: os.Getenv("SNAPSHOT_ACCESS_KEY"),
			SecretKey: os.Getenv("SNAPSHOT_SECRET_KEY"),
			Bucket:    envString("SNAPSHOT_BUCKET", "watchtower-snapshots"),
			Region:    envString("SNAPSHOT_REGION", "us-east-1"),
			UseSSL:    envBool("SNAPSHOT_USE_SSL", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of gemini, openai, ollama, vllm, mock; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2, got %v", c.AI.Temperature)
	}

	if c.Monitor.TickInterval < time.Second {
		return fmt.Errorf("MONITOR_TICK_INTERVAL must be at least 1s, got %s", c.Monitor.TickInterval)
	}
	if c.Monitor.FetchTimeout <= 0 {
		return fmt.Errorf("MONITOR_FETCH_TIMEOUT must be positive, got %s", c.Monitor.FetchTimeout)
	}
	if c.Monitor.Workers < 1 {
		return fmt.Errorf("MONITOR_WORKERS must be at least 1, got %d", c.Monitor.Workers)
	}

	if c.Snapshot.Enabled() && (c.Snapshot.AccessKey == "" || c.Snapshot.SecretKey == "") {
		return fmt.Errorf("SNAPSHOT_ACCESS_KEY and SNAPSHOT_SECRET_KEY are required when SNAPSHOT_ENDPOINT is set")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
