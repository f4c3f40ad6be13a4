// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供 LLM 服务商适配的公共基础层。openaicompat 子包依赖本包
完成请求/响应转换、错误映射与重试包装。

# 核心类型

  - CompletionRequest / CompletionResponse — /v1/chat/completions 的请求与响应结构体
  - RetryableProvider — 基于 llm/retry 指数退避的 Provider 包装器
  - RetryConfig — 重试策略配置（最大次数、初始延迟、退避因子）

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - NetworkError — 传输层错误统一标记为可重试
  - ToWireMessages / CompletionResponse.ChatResponse — 消息与响应格式转换
  - ChooseModel — 按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers
