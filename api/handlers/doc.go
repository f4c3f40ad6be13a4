// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 WikiChat HTTP API 的请求处理器实现。

# 概述

handlers 包实现文档 CRUD、检索问答、websocket 对话与健康检查端点，
以及统一的响应/错误处理。所有 Handler 均遵循标准 net/http 接口，
通过 Swagger 注解生成 API 文档。

# 核心类型

  - DocumentHandler  — 文档增删查与集合信息（/documents/, /collection/info）
  - SearchHandler    — 相关性判定 + 检索 + 摘要（/search/）
  - ChatHandler      — websocket 逐帧问答（/ws/chat）
  - HealthHandler    — 服务健康检查（/, /health, /healthz, /ready, /version）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码，支持 Hijack

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteRequestError
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射；文档与检索失败统一返回 400
  - 依赖以消费方接口声明（DocumentStore、Searcher、ChatSearcher），
    *rag.Collection 与 *assistant.Router 直接满足
  - 可扩展就绪检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
