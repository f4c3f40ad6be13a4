package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding 是 gpt-3.5 / text-embedding-3 系列使用的编码。
const DefaultEncoding = "cl100k_base"

const defaultMaxTokens = 8192

type modelSpec struct {
	encoding string
	context  int
}

var knownModels = map[string]modelSpec{
	"gpt-4o":                 {"o200k_base", 128000},
	"gpt-4o-mini":            {"o200k_base", 128000},
	"gpt-4":                  {"cl100k_base", 8192},
	"gpt-3.5-turbo":          {"cl100k_base", 16385},
	"text-embedding-3-large": {"cl100k_base", 8191},
	"text-embedding-3-small": {"cl100k_base", 8191},
	"text-embedding-ada-002": {"cl100k_base", 8191},
}

// specFor 精确匹配优先，否则取最长前缀（带日期后缀的快照名也能命中）。
func specFor(model string) modelSpec {
	if s, ok := knownModels[model]; ok {
		return s
	}
	var best string
	for name := range knownModels {
		if len(name) > len(best) && strings.HasPrefix(model, name) {
			best = name
		}
	}
	if best == "" {
		return modelSpec{DefaultEncoding, defaultMaxTokens}
	}
	return knownModels[best]
}

// TiktokenTokenizer 基于 tiktoken-go 的 BPE 分词。编码表在首次使用时加载，
// 可能触发网络下载，失败会被缓存。
type TiktokenTokenizer struct {
	spec modelSpec
	load func() (*tiktoken.Tiktoken, error)
}

func newTiktoken(spec modelSpec) *TiktokenTokenizer {
	return &TiktokenTokenizer{
		spec: spec,
		load: sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
			enc, err := tiktoken.GetEncoding(spec.encoding)
			if err != nil {
				return nil, fmt.Errorf("init tiktoken encoding %s: %w", spec.encoding, err)
			}
			return enc, nil
		}),
	}
}

// NewTiktokenTokenizer 按模型名选择编码，未知模型用 cl100k_base。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	return newTiktoken(specFor(model))
}

func NewTiktokenTokenizerForEncoding(encoding string, maxTokens int) *TiktokenTokenizer {
	return newTiktoken(modelSpec{encoding, maxTokens})
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	ids, err := t.Encode(text)
	return len(ids), err
}

func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	enc, err := t.load()
	if err != nil {
		return nil, err
	}
	return enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	enc, err := t.load()
	if err != nil {
		return "", err
	}
	return enc.Decode(tokens), nil
}

func (t *TiktokenTokenizer) MaxTokens() int   { return t.spec.context }
func (t *TiktokenTokenizer) Encoding() string { return t.spec.encoding }
func (t *TiktokenTokenizer) Name() string     { return "tiktoken[" + t.spec.encoding + "]" }
