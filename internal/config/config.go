package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prince1katiyar/Parking-project/pkg/memory/embed"
)

// EnvPrefix is prepended to every environment override, e.g. PARKING_HTTP_ADDR.
const EnvPrefix = "PARKING"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Model     ModelConfig     `mapstructure:"model"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Store     StoreConfig     `mapstructure:"store"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// ModelConfig picks the decision model: openai | gemini | anthropic | ollama | dummy.
type ModelConfig struct {
	Provider string `mapstructure:"provider"`
	Name     string `mapstructure:"name"`
}

type AgentConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	ContextLimit  int           `mapstructure:"context_limit"`
	SystemPrompt  string        `mapstructure:"system_prompt"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	Seed          bool   `mapstructure:"seed"`
}

type MemoryConfig struct {
	Backend     string        `mapstructure:"backend"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	Milvus      MilvusConfig  `mapstructure:"milvus"`
	Qdrant      QdrantConfig  `mapstructure:"qdrant"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type MilvusConfig struct {
	Address    string `mapstructure:"address"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Collection string `mapstructure:"collection"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	CacheDir  string `mapstructure:"cache_dir"`
}

// RedisConfig enables the shared session lock when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 2*time.Minute)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.rate_limit", 5.0)
	v.SetDefault("http.rate_burst", 20)
	v.SetDefault("http.trust_proxy_headers", false)

	v.SetDefault("model.provider", "dummy")
	v.SetDefault("model.name", "")

	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.call_timeout", 30*time.Second)
	v.SetDefault("agent.context_limit", 10)
	v.SetDefault("agent.system_prompt", "")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.mongo_uri", "")
	v.SetDefault("store.mongo_database", "parking")
	v.SetDefault("store.seed", false)

	v.SetDefault("memory.backend", "memory")
	v.SetDefault("memory.postgres_dsn", "")
	v.SetDefault("memory.milvus.address", "")
	v.SetDefault("memory.milvus.username", "")
	v.SetDefault("memory.milvus.password", "")
	v.SetDefault("memory.milvus.collection", "parking_conversations")
	v.SetDefault("memory.qdrant.host", "")
	v.SetDefault("memory.qdrant.port", 6334)
	v.SetDefault("memory.qdrant.api_key", "")
	v.SetDefault("memory.qdrant.use_tls", false)
	v.SetDefault("memory.qdrant.collection", "parking_conversations")
	v.SetDefault("memory.call_timeout", 10*time.Second)

	v.SetDefault("embedding.provider", "dummy")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.cache_dir", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 2*time.Minute)

	v.SetDefault("metrics.namespace", "parking")
}

// Load reads configuration from defaults, an optional YAML file and
// PARKING_* environment variables, in increasing order of precedence. An
// empty path looks for parking.yaml in the working directory and ./config.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("parking")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension, _ = embed.NativeDimension(cfg.Embedding.Provider, cfg.Embedding.Model)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (e EmbeddingConfig) validate() []error {
	switch embed.CanonicalProvider(e.Provider) {
	case "openai", "gemini", "ollama", "fastembed", "dummy":
	default:
		return []error{fmt.Errorf("embedding.provider %q is not supported", e.Provider)}
	}
	if e.Dimension < 0 {
		return []error{errors.New("embedding.dimension must not be negative")}
	}
	native, known := embed.NativeDimension(e.Provider, e.Model)
	switch {
	case e.Dimension == 0:
		return []error{fmt.Errorf("embedding.dimension is required for %s model %q", e.Provider, e.Model)}
	case known && e.Dimension != native && !embed.ResizableDimension(e.Provider, e.Model):
		return []error{fmt.Errorf("embedding.dimension %d does not match the %d dimensions %s model %q produces",
			e.Dimension, native, e.Provider, e.Model)}
	}
	return nil
}

// Validate rejects unknown backends, missing connection settings and
// out-of-range limits.
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Store.Backend) {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres backend"))
		}
	case "mongo":
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongo_uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be memory, postgres or mongo, got %q", c.Store.Backend))
	}

	switch strings.ToLower(c.Memory.Backend) {
	case "memory":
	case "postgres":
		if c.Memory.PostgresDSN == "" {
			errs = append(errs, errors.New("memory.postgres_dsn is required for the postgres backend"))
		}
	case "milvus":
		if c.Memory.Milvus.Address == "" {
			errs = append(errs, errors.New("memory.milvus.address is required for the milvus backend"))
		}
	case "qdrant":
		if c.Memory.Qdrant.Host == "" {
			errs = append(errs, errors.New("memory.qdrant.host is required for the qdrant backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("memory.backend must be memory, postgres, milvus or qdrant, got %q", c.Memory.Backend))
	}

	switch strings.ToLower(c.Model.Provider) {
	case "openai", "gemini", "google", "anthropic", "claude", "ollama", "dummy":
	default:
		errs = append(errs, fmt.Errorf("model.provider %q is not supported", c.Model.Provider))
	}

	if c.Agent.MaxIterations < 1 {
		errs = append(errs, errors.New("agent.max_iterations must be at least 1"))
	}
	if c.Agent.CallTimeout <= 0 {
		errs = append(errs, errors.New("agent.call_timeout must be positive"))
	}
	if c.Agent.ContextLimit < 1 {
		errs = append(errs, errors.New("agent.context_limit must be at least 1"))
	}
	errs = append(errs, c.Embedding.validate()...)
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("http.rate_limit must not be negative"))
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.RateBurst < 1 {
		errs = append(errs, errors.New("http.rate_burst must be at least 1 when rate limiting is enabled"))
	}

	return errors.Join(errs...)
}
