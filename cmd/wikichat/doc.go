// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 WikiChat 服务端程序入口。

# 概述

cmd/wikichat 是单主题 Wikipedia 问答服务的可执行入口，提供 HTTP/WebSocket
API、词条导入、数据库迁移、健康检查和版本查询等子命令。程序支持 .env 与
YAML 配置加载、结构化日志（zap）、Prometheus 指标采集、OpenTelemetry
追踪以及日志级别热更新。

# 核心类型

  - Server      — 主服务器，装配存储、问答链路与 Handlers，管理 API 与 Metrics 双端口
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（默认）、ingest、migrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、CORS、
    Metrics、OTelTracing、RateLimiter（基于 IP）、JWTAuth 或 APIKeyAuth
  - 启动导入：wiki.ingest_on_startup 为 true 时后台执行幂等导入
  - 优雅关闭：信号监听 → 关闭 HTTP/Metrics → 停止配置监听 → 等待后台任务
    → 刷新遥测 → 关闭数据库与 Redis → 输出 LLM 用量汇总
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
