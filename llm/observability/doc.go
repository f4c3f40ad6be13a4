// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 为 LLM 调用提供基于 OpenTelemetry 的指标、追踪与成本核算。

# 核心类型

  - Metrics：OTel Meter/Tracer 封装，记录请求数、Token 数、错误数、
    延迟直方图、单次成本直方图与活跃请求数。
  - InstrumentedProvider：包装 llm.Provider，每次 Completion 生成一个
    llm.completion Span，并按 provider/model/purpose 维度打点。
  - CostCalculator / CostTracker：按模型价格表估算费用并进程级累计。

purpose 取自 ChatRequest.Metadata[llm.MetadataPurpose]，
WikiChat 中为 relevance 或 summary。
*/
package observability
