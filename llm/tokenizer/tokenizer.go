package tokenizer

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Tokenizer 分块统计与摘要预算共用的 token 计数接口。
type Tokenizer interface {
	CountTokens(text string) (int, error)
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
	// MaxTokens 模型上下文长度
	MaxTokens() int
	Name() string
}

// FallbackTokenizer 优先使用 primary，primary 出错（例如 BPE 数据下载失败）时
// 退回到 fallback 估算器。只会记录一次警告日志。
type FallbackTokenizer struct {
	primary  Tokenizer
	fallback Tokenizer
	logger   *zap.Logger
	warned   atomic.Bool
}

// NewFallbackTokenizer 组合两个分词器。
func NewFallbackTokenizer(primary, fallback Tokenizer, logger *zap.Logger) *FallbackTokenizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackTokenizer{primary: primary, fallback: fallback, logger: logger}
}

// ForEncoding 返回指定 tiktoken 编码的分词器，带估算器兜底。
// 空编码名使用 cl100k_base。
func ForEncoding(encoding string, logger *zap.Logger) *FallbackTokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return NewFallbackTokenizer(
		NewTiktokenTokenizerForEncoding(encoding, 8191),
		NewEstimatorTokenizer(encoding, 8191),
		logger,
	)
}

func (f *FallbackTokenizer) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err == nil {
		return n, nil
	}
	f.warnOnce(err)
	return f.fallback.CountTokens(text)
}

func (f *FallbackTokenizer) Encode(text string) ([]int, error) {
	ids, err := f.primary.Encode(text)
	if err == nil {
		return ids, nil
	}
	f.warnOnce(err)
	return f.fallback.Encode(text)
}

func (f *FallbackTokenizer) Decode(tokens []int) (string, error) {
	return f.primary.Decode(tokens)
}

func (f *FallbackTokenizer) MaxTokens() int { return f.primary.MaxTokens() }

func (f *FallbackTokenizer) Name() string { return f.primary.Name() }

func (f *FallbackTokenizer) warnOnce(err error) {
	if !f.warned.CompareAndSwap(false, true) {
		return
	}
	f.logger.Warn("tokenizer unavailable, falling back to estimator",
		zap.String("tokenizer", f.primary.Name()),
		zap.Error(err))
}
