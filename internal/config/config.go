// Package config 负责加载、校验应用程序的配置。
// 配置在 main 中加载一次，通过构造函数显式传递，不使用全局变量。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Rerank      RerankConfig      `mapstructure:"rerank"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Session     SessionConfig     `mapstructure:"session"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Corpus      CorpusConfig      `mapstructure:"corpus"`
	Feedback    FeedbackConfig    `mapstructure:"feedback"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
// DSN 为空时退化为内存用户存储（仅用于本地开发）。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。Secret 必须显式配置，没有默认值。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// VectorStoreConfig 选择向量索引后端：elasticsearch（默认）或 pgvector。
type VectorStoreConfig struct {
	Type          string              `mapstructure:"type"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// PostgresConfig 存储 pgvector 后端的配置。
type PostgresConfig struct {
	DSN       string `mapstructure:"dsn"`
	TableName string `mapstructure:"table_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，语料文档存放于此。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示与上下文包裹格式（可选）。
// Rules 是固定的系统规则层，始终位于系统消息最前面。
type LLMPromptConfig struct {
	Rules        string `mapstructure:"rules"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// RerankConfig 配置可选的重排序服务（Cohere 风格 /rerank 接口）。
type RerankConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// ChunkingConfig 配置文本切分参数（以 rune 计）。
type ChunkingConfig struct {
	WindowSize int `mapstructure:"window_size"`
	Overlap    int `mapstructure:"overlap"`
	MinLength  int `mapstructure:"min_length"`
}

// RetrievalConfig 配置检索流程参数。
type RetrievalConfig struct {
	DefaultTopK         int     `mapstructure:"default_top_k"`
	MaxTopK             int     `mapstructure:"max_top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	ContextBudget       int     `mapstructure:"context_budget"`
	MaxQueryLength      int     `mapstructure:"max_query_length"`
	CacheTTLSeconds     int     `mapstructure:"cache_ttl_seconds"`
}

// SessionConfig 配置会话历史存储。
type SessionConfig struct {
	MaxMessages int `mapstructure:"max_messages"`
	TTLHours    int `mapstructure:"ttl_hours"`
}

// RateLimitConfig 配置固定窗口限流。
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	Requests      int  `mapstructure:"requests"`
	WindowSeconds int  `mapstructure:"window_seconds"`
}

// CorpusConfig 配置本地语料目录，启动时上传到 MinIO 并触发索引。
type CorpusConfig struct {
	SeedDir string `mapstructure:"seed_dir"`
}

// FeedbackConfig 配置反馈记录输出。
type FeedbackConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load 从指定路径读取 YAML 配置并解析、填充默认值、校验。
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// overlap 的零值是合法配置（不重叠切分），默认值必须在 viper 层设置，
	// 才能区分"显式写 0"和"没写"。
	viper.SetDefault("chunking.overlap", 100)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "elasticsearch"
	}
	if c.VectorStore.Elasticsearch.IndexName == "" {
		c.VectorStore.Elasticsearch.IndexName = "medical_chunks"
	}
	if c.VectorStore.Postgres.TableName == "" {
		c.VectorStore.Postgres.TableName = "chunk_embeddings"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 16
	}
	if c.Chunking.WindowSize <= 0 {
		c.Chunking.WindowSize = 500
	}
	if c.Chunking.Overlap < 0 {
		c.Chunking.Overlap = 0
	}
	if c.Chunking.MinLength <= 0 {
		c.Chunking.MinLength = 100
	}
	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 5
	}
	if c.Retrieval.MaxTopK <= 0 {
		c.Retrieval.MaxTopK = 20
	}
	if c.Retrieval.SimilarityThreshold <= 0 {
		c.Retrieval.SimilarityThreshold = 0.35
	}
	if c.Retrieval.ContextBudget <= 0 {
		c.Retrieval.ContextBudget = 4000
	}
	if c.Retrieval.MaxQueryLength <= 0 {
		c.Retrieval.MaxQueryLength = 2000
	}
	if c.Retrieval.CacheTTLSeconds <= 0 {
		c.Retrieval.CacheTTLSeconds = 3600
	}
	if c.Session.MaxMessages <= 0 {
		c.Session.MaxMessages = 20
	}
	if c.Session.TTLHours <= 0 {
		c.Session.TTLHours = 24
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 60
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
	if c.JWT.AccessTokenExpireHours <= 0 {
		c.JWT.AccessTokenExpireHours = 24
	}
	if c.JWT.RefreshTokenExpireDays <= 0 {
		c.JWT.RefreshTokenExpireDays = 7
	}
	if c.Feedback.Dir == "" {
		c.Feedback.Dir = "data/feedback"
	}
}

// Validate 校验必填项。密钥类配置缺失直接拒绝启动，不允许回退默认值。
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("配置缺失: jwt.secret 必须显式设置")
	}
	if c.Embedding.BaseURL == "" || c.Embedding.Model == "" {
		return fmt.Errorf("配置缺失: embedding.base_url 和 embedding.model 必须设置")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("配置缺失: embedding.dimensions 必须为正数")
	}
	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		return fmt.Errorf("配置缺失: llm.base_url 和 llm.model 必须设置")
	}
	if c.Chunking.Overlap >= c.Chunking.WindowSize {
		return fmt.Errorf("配置错误: chunking.overlap 必须小于 chunking.window_size")
	}
	switch c.VectorStore.Type {
	case "elasticsearch":
		if c.VectorStore.Elasticsearch.Addresses == "" {
			return fmt.Errorf("配置缺失: vector_store.elasticsearch.addresses")
		}
	case "pgvector":
		if c.VectorStore.Postgres.DSN == "" {
			return fmt.Errorf("配置缺失: vector_store.postgres.dsn")
		}
	default:
		return fmt.Errorf("配置错误: 不支持的 vector_store.type %q", c.VectorStore.Type)
	}
	if c.Rerank.Enabled && c.Rerank.BaseURL == "" {
		return fmt.Errorf("配置缺失: rerank.enabled 时必须设置 rerank.base_url")
	}
	return nil
}
