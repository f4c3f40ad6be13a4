// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于记录每个 chunk 的 token 数。
package tokenizer
