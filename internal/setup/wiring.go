package setup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/povarna/generative-ai-agents/tlm-agent/internal/cache"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/config"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/llm/bedrock"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/llm/gpt"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/redis"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/scoring"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/store"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/studio"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ProviderRemote  = "remote"
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

type Config struct {
	Provider       string
	Timeout        time.Duration
	MaxConcurrency int
	QualityPreset  string
	APIKey         string
	BaseURL        string
	AWSRegion      string
	ClaudeModelID  string
	OpenAIKey      string
	OpenAIModelID  string
	RedisAddr      string
	RedisPassword  string
	CacheTTL       time.Duration
	DatabaseURL    string
	LogLevel       string
	APIPort        string
}

type Dependencies struct {
	TLM    *tlm.TLM
	Config *config.Config
	Redis  *goredis.Client
	Logger *zerolog.Logger
}

// Close releases the connections opened by Wire.
func (d *Dependencies) Close() error {
	if d.Redis != nil {
		return d.Redis.Close()
	}
	return nil
}

func LoadConfig() *Config {
	return &Config{
		Provider:       getEnv("TLM_PROVIDER", ProviderRemote),
		Timeout:        getEnvDuration("TLM_TIMEOUT", 0),
		MaxConcurrency: getEnvInt("TLM_MAX_CONCURRENCY", 0),
		QualityPreset:  getEnv("TLM_QUALITY_PRESET", ""),
		APIKey:         getEnv("TLM_API_KEY", ""),
		BaseURL:        getEnv("TLM_BASE_URL", studio.DefaultBaseURL),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:  getEnv("CLAUDE_MODEL_ID", ""),
		OpenAIKey:      getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:  getEnv("OPEN_AI_MODEL_ID", ""),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		CacheTTL:       getEnvDuration("TLM_CACHE_TTL", 0),
		DatabaseURL:    databaseURL(),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		APIPort:        getEnv("TLM_API_PORT", "8080"),
	}
}

// Wire builds the dispatcher and its sender. Environment values override configs/tlm.yaml.
func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	fileCfg, err := loadFileConfig(cfg.Provider, logger)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(fileCfg, cfg); err != nil {
		return nil, err
	}

	sender, err := createSender(ctx, cfg, fileCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s sender: %w", cfg.Provider, err)
	}

	deps := &Dependencies{Config: fileCfg, Logger: logger}

	if cfg.CacheTTL > 0 {
		client, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, 3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect response cache: %w", err)
		}
		deps.Redis = client
		namespace := cfg.Provider + ":" + fileCfg.TLM.QualityPreset
		sender = cache.NewRedisResponseCache(sender, client, namespace, cfg.CacheTTL, logger)
	}

	dispatcher, err := tlm.New(sender, tlm.Options{
		Timeout:        fileCfg.TLM.Timeout,
		MaxConcurrency: fileCfg.TLM.MaxConcurrency,
	}, logger)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	deps.TLM = dispatcher

	logger.Info().
		Str("provider", cfg.Provider).
		Str("quality_preset", fileCfg.TLM.QualityPreset).
		Dur("timeout", dispatcher.Options().Timeout).
		Int("max_concurrency", dispatcher.Options().MaxConcurrency).
		Bool("cache", cfg.CacheTTL > 0).
		Msg("dispatcher wired")

	return deps, nil
}

// loadFileConfig reads the YAML config. The remote provider does not need the
// reflection prompts, so a missing file is tolerated for it.
func loadFileConfig(provider string, logger *zerolog.Logger) (*config.Config, error) {
	fileCfg, err := config.Load()
	if err == nil {
		return fileCfg, nil
	}
	if provider == ProviderRemote && errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Msg("config file not found, using defaults")
		return &config.Config{TLM: config.DispatcherConfig{QualityPreset: string(models.QualityMedium)}}, nil
	}
	return nil, fmt.Errorf("failed to load config: %w", err)
}

func applyOverrides(fileCfg *config.Config, cfg *Config) error {
	if cfg.Timeout > 0 {
		fileCfg.TLM.Timeout = cfg.Timeout
	}
	if cfg.MaxConcurrency > 0 {
		fileCfg.TLM.MaxConcurrency = cfg.MaxConcurrency
	}
	if cfg.QualityPreset != "" {
		preset, err := models.ParseQualityPreset(cfg.QualityPreset)
		if err != nil {
			return err
		}
		fileCfg.TLM.QualityPreset = string(preset)
	}
	return nil
}

func createSender(ctx context.Context, cfg *Config, fileCfg *config.Config, logger *zerolog.Logger) (tlm.Sender, error) {
	if cfg.Provider == ProviderRemote {
		preset, err := models.ParseQualityPreset(fileCfg.TLM.QualityPreset)
		if err != nil {
			return nil, err
		}
		return studio.NewClient(cfg.APIKey, logger,
			studio.WithBaseURL(cfg.BaseURL),
			studio.WithQualityPreset(preset),
		)
	}

	llmClient, err := createLLMClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return scoring.NewScorer(llmClient, fileCfg, logger)
}

func createLLMClient(ctx context.Context, cfg *Config) (llm.LLMClient, error) {
	switch cfg.Provider {
	case ProviderBedrock:
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	case ProviderOpenAI:
		return gpt.NewClient(cfg.OpenAIKey, cfg.OpenAIModelID)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	dbConfig := store.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Database: getEnv("DB_NAME", "tlm"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	return dbConfig.ConnectionString()
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		value = defaultValue
	}

	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		// plain numbers are seconds
		seconds, ferr := strconv.ParseFloat(valueStr, 64)
		if ferr != nil {
			return defaultValue
		}
		value = tlm.Seconds(seconds)
	}

	return value
}
