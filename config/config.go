package config

import (
	"fmt"
	"time"
)

// Config 服务的完整配置。env 标签按层级拼接成 {PREFIX}_{SECTION}_{FIELD}。
type Config struct {
	Server      ServerConfig      `yaml:"server" env:"SERVER"`
	Wiki        WikiConfig        `yaml:"wiki" env:"WIKI"`
	Chunker     ChunkerConfig     `yaml:"chunker" env:"CHUNKER"`
	Embedding   EmbeddingConfig   `yaml:"embedding" env:"EMBEDDING"`
	VectorStore VectorStoreConfig `yaml:"vector_store" env:"VECTOR_STORE"`
	Qdrant      QdrantConfig      `yaml:"qdrant" env:"QDRANT"`
	Database    DatabaseConfig    `yaml:"database" env:"DATABASE"`
	LLM         LLMConfig         `yaml:"llm" env:"LLM"`
	Redis       RedisConfig       `yaml:"redis" env:"REDIS"`
	Cache       CacheConfig       `yaml:"cache" env:"CACHE"`
	Log         LogConfig         `yaml:"log" env:"LOG"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" env:"TELEMETRY"`
}

type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"` // 0 关闭独立指标端口
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	RateLimitRPS       int      `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"` // 按客户端 IP
	RateLimitBurst     int      `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`

	// 两者都为空时不做认证；JWT 优先
	APIKeys []string  `yaml:"api_keys" env:"API_KEYS"`
	JWT     JWTConfig `yaml:"jwt" env:"JWT"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret" env:"SECRET"`         // HS256
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"` // RS256，PEM
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

func (j JWTConfig) Enabled() bool {
	return j.Secret != "" || j.PublicKey != ""
}

// WikiConfig 唯一的目标词条及其主题人物
type WikiConfig struct {
	URL string `yaml:"url" env:"URL"`
	// 分块 ID 为 {document_id}_chunk_{i}
	DocumentID  string `yaml:"document_id" env:"DOCUMENT_ID"`
	Topic       string `yaml:"topic" env:"TOPIC"`
	Description string `yaml:"description" env:"DESCRIPTION"` // 写进相关性判定提示词
	BirthDate   string `yaml:"birth_date" env:"BIRTH_DATE"`   // YYYY-MM-DD

	UserAgent       string        `yaml:"user_agent" env:"USER_AGENT"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	IngestOnStartup bool          `yaml:"ingest_on_startup" env:"INGEST_ON_STARTUP"`
}

func (w WikiConfig) Birthday() (time.Time, error) {
	return time.Parse(time.DateOnly, w.BirthDate)
}

type ChunkerConfig struct {
	ChunkSize int    `yaml:"chunk_size" env:"CHUNK_SIZE"` // 字符数
	Encoding  string `yaml:"encoding" env:"ENCODING"`     // 仅用于统计 token
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider" env:"PROVIDER"` // openai | hash
	Model    string `yaml:"model" env:"MODEL"`
	// 为空时沿用 llm.base_url / llm.api_key
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	Dimensions int           `yaml:"dimensions" env:"DIMENSIONS"`
	BatchSize  int           `yaml:"batch_size" env:"BATCH_SIZE"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type VectorStoreConfig struct {
	Type       string `yaml:"type" env:"TYPE"` // memory | qdrant | sql
	Collection string `yaml:"collection" env:"COLLECTION"`
}

type QdrantConfig struct {
	Host    string        `yaml:"host" env:"HOST"`
	Port    int           `yaml:"port" env:"PORT"` // REST
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// BaseURL Qdrant REST 基础地址
func (q *QdrantConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", q.Host, q.Port)
}

// DatabaseConfig sql 向量存储与迁移共用
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // postgres | mysql | sqlite
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"` // sqlite 时为文件路径
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// DSN 按驱动拼接连接串，未知驱动返回空串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "sqlite":
		return d.Name
	}
	return ""
}

type LLMConfig struct {
	APIKey     string        `yaml:"api_key" env:"API_KEY"` // 为空时读取 OPENAI_API_KEY
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`

	Relevance CompletionConfig `yaml:"relevance" env:"RELEVANCE"`
	Summary   CompletionConfig `yaml:"summary" env:"SUMMARY"`
}

// CompletionConfig 某一类 LLM 调用的模型参数
type CompletionConfig struct {
	Model       string  `yaml:"model" env:"MODEL"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// CacheConfig 相关性判定与摘要的结果缓存，依赖 Redis
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	RelevanceTTL time.Duration `yaml:"relevance_ttl" env:"RELEVANCE_TTL"`
	SummaryTTL   time.Duration `yaml:"summary_ttl" env:"SUMMARY_TTL"`
}

type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`   // debug | info | warn | error
	Format           string   `yaml:"format" env:"FORMAT"` // json | console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}
