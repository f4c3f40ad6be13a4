package rag

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultChunkSize 单个 chunk 的目标字符数（按 rune 计）
const DefaultChunkSize = 1000

// paragraphSeparator 段落分隔符
const paragraphSeparator = "\n\n"

// Chunk 文档块
type Chunk struct {
	Index      int            `json:"index"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	TokenCount int            `json:"token_count"`
}

// Tokenizer 分词器接口
type Tokenizer interface {
	CountTokens(text string) int
	Encode(text string) []int
}

// ParagraphChunker 按段落累积分块。
// 段落按 "\n\n" 切分后依次追加到当前块，当前块与新段落的字符数之和超过 ChunkSize 时先输出当前块。
// 单个段落不会被拆开，超长段落独立成块。
type ParagraphChunker struct {
	chunkSize int
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewParagraphChunker 创建分块器，chunkSize<=0 时使用 DefaultChunkSize。
// tokenizer 可为 nil，此时 TokenCount 为 0。
func NewParagraphChunker(chunkSize int, tokenizer Tokenizer, logger *zap.Logger) *ParagraphChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParagraphChunker{
		chunkSize: chunkSize,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "chunker")),
	}
}

// ChunkSize 返回分块大小
func (c *ParagraphChunker) ChunkSize() int { return c.chunkSize }

// Chunk 将文本切分为若干块
func (c *ParagraphChunker) Chunk(text string) []string {
	var (
		chunks     []string
		current    string
		currentLen int // rune 数
	)

	emit := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	sepLen := utf8.RuneCountInString(paragraphSeparator)
	for _, paragraph := range strings.Split(text, paragraphSeparator) {
		n := utf8.RuneCountInString(paragraph)
		switch {
		case current != "" && currentLen+n > c.chunkSize:
			emit()
			current, currentLen = paragraph, n
		case current != "":
			current += paragraphSeparator + paragraph
			currentLen += sepLen + n
		default:
			current, currentLen = paragraph, n
		}
	}
	if current != "" {
		emit()
	}
	return chunks
}

// ChunkDocument 分块并为每个块附加元数据。
// 每块元数据为 base 的拷贝加上 chunk_index、total_chunks、token_count。
func (c *ParagraphChunker) ChunkDocument(text string, base map[string]any) []Chunk {
	parts := c.Chunk(text)
	chunks := make([]Chunk, len(parts))
	totalTokens := 0

	for i, part := range parts {
		meta := cloneMetadata(base)
		if meta == nil {
			meta = make(map[string]any, 3)
		}
		tokens := 0
		if c.tokenizer != nil {
			tokens = c.tokenizer.CountTokens(part)
		}
		totalTokens += tokens

		meta["chunk_index"] = i
		meta["total_chunks"] = len(parts)
		meta["token_count"] = tokens

		chunks[i] = Chunk{
			Index:      i,
			Content:    part,
			Metadata:   meta,
			TokenCount: tokens,
		}
	}

	c.logger.Info("paragraph chunking completed",
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", c.chunkSize),
		zap.Int("total_tokens", totalTokens))

	return chunks
}
