package rag

import (
	"go.uber.org/zap"

	lltok "github.com/BaSui01/wikichat/llm/tokenizer"
)

// LLMTokenizerAdapter 把返回 error 的 llm/tokenizer.Tokenizer 适配为 rag.Tokenizer。
// 底层出错时改用字符估算器，分块流程不会因此中断。
type LLMTokenizerAdapter struct {
	inner    lltok.Tokenizer
	estimate *lltok.EstimatorTokenizer
	logger   *zap.Logger
}

func NewLLMTokenizerAdapter(inner lltok.Tokenizer, logger *zap.Logger) *LLMTokenizerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMTokenizerAdapter{
		inner:    inner,
		estimate: lltok.NewEstimatorTokenizer(inner.Name(), inner.MaxTokens()),
		logger:   logger,
	}
}

func (a *LLMTokenizerAdapter) CountTokens(text string) int {
	n, err := a.inner.CountTokens(text)
	if err == nil {
		return n
	}
	a.logger.Warn("token count failed, using estimate", zap.String("tokenizer", a.inner.Name()), zap.Error(err))
	n, _ = a.estimate.CountTokens(text)
	return n
}

func (a *LLMTokenizerAdapter) Encode(text string) []int {
	ids, err := a.inner.Encode(text)
	if err == nil {
		return ids
	}
	a.logger.Warn("encode failed, using estimate", zap.String("tokenizer", a.inner.Name()), zap.Error(err))
	ids, _ = a.estimate.Encode(text)
	return ids
}

// NewEncodingAdapter 按 tiktoken 编码名（空串为 cl100k_base）创建分块用的 Tokenizer。
// chunk 元数据里的 token_count 由它计算。
func NewEncodingAdapter(encoding string, logger *zap.Logger) Tokenizer {
	return NewLLMTokenizerAdapter(lltok.ForEncoding(encoding, logger), logger)
}
