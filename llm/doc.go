// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层，包括 Provider 抽象、错误语义与响应辅助函数。

# 概述

WikiChat 通过 LLM 完成两类调用：相关性判定（YES/NO）与检索结果摘要。
本包屏蔽模型服务商在接口、鉴权与错误语义上的差异，对上层 assistant
包暴露一致的请求与响应模型。

# 核心接口

  - [Provider]：LLM 提供者接口，提供 Completion / HealthCheck / Name

# 核心类型

  - [ChatRequest] / [ChatResponse]：请求与响应模型
  - [Error] / [ErrorCode]：LLM_* 错误码，携带 HTTPStatus 与 Retryable 标记

# 子包

  - providers：OpenAI 兼容协议的通用类型、错误映射与重试包装
  - providers/openaicompat：OpenAI 兼容 Chat Completions 实现
  - embedding：向量化 Provider（OpenAI /v1/embeddings 与本地哈希向量）
  - retry：指数退避重试器
  - tokenizer：tiktoken 与估算分词器
*/
package llm
