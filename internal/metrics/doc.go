// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、LLM、embedding、
查询路由、入库、缓存与数据库。

# 概述

Collector 通过 promauto.With(registry) 注册全部指标，所有指标按 namespace
隔离。NewCollector 使用默认 registry，测试中用 NewCollectorWithRegistry
传入独立 registry。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：按 purpose（relevance / summary）与 model 分组的请求数、耗时与 token 用量。
  - 查询路由：queries_total{route}，route 取 off_topic / shortcut / age / no_results / rag / error；
    relevance_checks_total{source, relevant} 记录判定来源。
  - 向量存储：按操作统计成功与失败，检索结果条数分布。
  - 入库：ingest_runs_total{status}、最近一次写入的块数与耗时。
  - 缓存与数据库：命中/未命中计数、连接池 Gauge、查询耗时。
*/
package metrics
