package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of all environment overrides, e.g. NEXUS_RETRIEVAL_K.
const EnvPrefix = "NEXUS"

// Config is the service configuration.
type Config struct {
	Server    ServerConfig                 `mapstructure:"server"`
	Database  helper.DatabaseConfiguration `mapstructure:"database"`
	FTS       FTSConfig                    `mapstructure:"fts"`
	Retrieval RetrievalConfig              `mapstructure:"retrieval"`
	Embedding EmbeddingConfig              `mapstructure:"embedding"`
	Chunking  ChunkingConfig               `mapstructure:"chunking"`
	LLM       LLMConfig                    `mapstructure:"llm"`
	Log       LogConfig                    `mapstructure:"log"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FTSConfig configures the SQLite full text index of the fuzzy channel.
type FTSConfig struct {
	Path string `mapstructure:"path"`
}

// WeightsConfig holds the fusion weight of each channel.
type WeightsConfig struct {
	Vector float64 `mapstructure:"vector"`
	Fuzzy  float64 `mapstructure:"fuzzy"`
	Graph  float64 `mapstructure:"graph"`
}

// GraphConfig configures seed selection and the reasoning walk.
type GraphConfig struct {
	MaxSteps           int    `mapstructure:"max_steps"`
	GoalType           string `mapstructure:"goal_type"`
	MaxSeeds           int    `mapstructure:"max_seeds"`
	SeedMinOverlap     int    `mapstructure:"seed_min_overlap"`
	SeedMinTokenLength int    `mapstructure:"seed_min_token_length"`
}

// RetrievalConfig configures the hybrid retrieval.
type RetrievalConfig struct {
	K                   int           `mapstructure:"k"`
	RRFK                int           `mapstructure:"rrf_k"`
	OverFetchFactor     int           `mapstructure:"over_fetch_factor"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	ChannelTimeout      time.Duration `mapstructure:"channel_timeout"`
	MaxQueryLength      int           `mapstructure:"max_query_length"`
	Weights             WeightsConfig `mapstructure:"weights"`
	Graph               GraphConfig   `mapstructure:"graph"`
}

// EmbeddingConfig selects the embedder, "hugot" runs a local model and
// "openai" calls the embeddings endpoint of the llm section.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ChunkingConfig configures the semantic chunker.
type ChunkingConfig struct {
	MaxChunkSize int     `mapstructure:"max_chunk_size"`
	Threshold    float64 `mapstructure:"threshold"`
}

// LLMConfig configures generation. Without api keys the demo generator is used.
type LLMConfig struct {
	APIKeys           []string      `mapstructure:"api_keys"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	CodeModel         string        `mapstructure:"code_model"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Timeout           time.Duration `mapstructure:"timeout"`
	SystemPrompt      string        `mapstructure:"system_prompt"`
	MaxContextLength  int           `mapstructure:"max_context_length"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	query := model.DefaultQueryConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.database", "nexus")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("fts.path", "nexus_fts.db")

	v.SetDefault("retrieval.k", query.TopK)
	v.SetDefault("retrieval.rrf_k", query.RRFK)
	v.SetDefault("retrieval.over_fetch_factor", query.OverFetchFactor)
	v.SetDefault("retrieval.similarity_threshold", query.SimilarityThreshold)
	v.SetDefault("retrieval.channel_timeout", query.ChannelTimeout)
	v.SetDefault("retrieval.max_query_length", query.MaxQueryLength)
	v.SetDefault("retrieval.weights.vector", query.Weights[model.StrategyVector])
	v.SetDefault("retrieval.weights.fuzzy", query.Weights[model.StrategyFuzzy])
	v.SetDefault("retrieval.weights.graph", query.Weights[model.StrategyGraph])
	v.SetDefault("retrieval.graph.max_steps", query.GraphMaxSteps)
	v.SetDefault("retrieval.graph.goal_type", string(query.GraphGoalType))
	v.SetDefault("retrieval.graph.max_seeds", query.MaxSeedNodes)
	v.SetDefault("retrieval.graph.seed_min_overlap", query.SeedMinOverlap)
	v.SetDefault("retrieval.graph.seed_min_token_length", query.SeedMinTokenLength)

	v.SetDefault("embedding.provider", "hugot")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimensions", 384)

	v.SetDefault("chunking.max_chunk_size", 500)
	v.SetDefault("chunking.threshold", 0.7)

	v.SetDefault("llm.api_keys", []string{})
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", generation.DefaultModel)
	v.SetDefault("llm.code_model", "")
	v.SetDefault("llm.max_tokens", generation.DefaultMaxTokens)
	v.SetDefault("llm.temperature", generation.DefaultTemperature)
	v.SetDefault("llm.requests_per_minute", generation.DefaultRequestsPerMinute)
	v.SetDefault("llm.max_retries", generation.DefaultMaxRetries)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.system_prompt", generation.DefaultSystemPrompt)
	v.SetDefault("llm.max_context_length", generation.DefaultMaxContextLength)

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. Values come from the defaults, then the
// config file, then NEXUS_ prefixed environment variables. A .env file in
// the working directory is loaded into the environment first. Without an
// explicit path a nexus.yaml in the working directory is used if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The database handler reads NEXUS_DB_*, accept those as well
	for _, key := range []string{"host", "port", "database", "username", "password", "schema", "sslmode"} {
		_ = v.BindEnv("database."+key, "NEXUS_DATABASE_"+strings.ToUpper(key), "NEXUS_DB_"+strings.ToUpper(key))
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, helper.NewError("read config file", err)
		}
	} else {
		v.SetConfigName("nexus")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, helper.NewError("read config file", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, helper.NewError("unmarshal config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Retrieval.K <= 0 {
		return helper.NewError("validate config", fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K))
	}
	if c.Retrieval.RRFK <= 0 {
		return helper.NewError("validate config", fmt.Errorf("retrieval.rrf_k must be positive, got %d", c.Retrieval.RRFK))
	}
	w := c.Retrieval.Weights
	if w.Vector < 0 || w.Fuzzy < 0 || w.Graph < 0 {
		return helper.NewError("validate config", fmt.Errorf("retrieval weights must not be negative"))
	}
	if c.Retrieval.Graph.MaxSteps < 0 {
		return helper.NewError("validate config", fmt.Errorf("retrieval.graph.max_steps must not be negative"))
	}
	switch c.Embedding.Provider {
	case "hugot", "openai":
	default:
		return helper.NewError("validate config", fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		return helper.NewError("validate config", fmt.Errorf("embedding.dimensions must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return helper.NewError("validate config", err)
	}
	return nil
}

// QueryConfig returns the retrieval settings as a model.QueryConfig.
func (c *Config) QueryConfig() model.QueryConfig {
	query := model.DefaultQueryConfig()
	r := c.Retrieval

	query.TopK = r.K
	query.RRFK = r.RRFK
	query.OverFetchFactor = r.OverFetchFactor
	query.SimilarityThreshold = r.SimilarityThreshold
	query.ChannelTimeout = r.ChannelTimeout
	query.MaxQueryLength = r.MaxQueryLength
	query.Weights = map[model.Strategy]float64{
		model.StrategyVector: r.Weights.Vector,
		model.StrategyFuzzy:  r.Weights.Fuzzy,
		model.StrategyGraph:  r.Weights.Graph,
	}
	query.GraphMaxSteps = r.Graph.MaxSteps
	if r.Graph.GoalType != "" {
		query.GraphGoalType = model.NodeType(r.Graph.GoalType)
	}
	query.MaxSeedNodes = r.Graph.MaxSeeds
	query.SeedMinOverlap = r.Graph.SeedMinOverlap
	query.SeedMinTokenLength = r.Graph.SeedMinTokenLength

	return query
}

// DemoMode reports whether no api key is configured.
func (c *Config) DemoMode() bool {
	for _, key := range c.LLM.APIKeys {
		if strings.TrimSpace(key) != "" {
			return false
		}
	}
	return true
}

// OpenAIConfig returns the generator settings. Keys are named key_0, key_1, ...
func (c *Config) OpenAIConfig() generation.OpenAIConfig {
	keys := make([]generation.APIKey, 0, len(c.LLM.APIKeys))
	for i, key := range c.LLM.APIKeys {
		keys = append(keys, generation.APIKey{Name: fmt.Sprintf("key_%d", i), Value: strings.TrimSpace(key)})
	}

	return generation.OpenAIConfig{
		Keys:              keys,
		BaseURL:           c.LLM.BaseURL,
		Model:             c.LLM.Model,
		CodeModel:         c.LLM.CodeModel,
		MaxTokens:         c.LLM.MaxTokens,
		Temperature:       float32(c.LLM.Temperature),
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		MaxRetries:        c.LLM.MaxRetries,
		Timeout:           c.LLM.Timeout,
		Backoff:           time.Second,
	}
}

// ParseLevel parses a slog level name.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
