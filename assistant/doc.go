// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package assistant 实现单词条问答的编排层：相关性判定、短语捷径、
检索与 LLM 摘要，以及词条导入。

# 查询流程

Router.Search 按固定优先级处理一次查询：

 1. RelevanceClassifier 判定是否与主题人物相关，无关时直接返回提示
 2. 问候、告别、确认与年龄问题由 Summarizer 给出固定回复，不检索
 3. 其余查询检索 top-k 段落，交给 LLM 整理成回答

每个终态记为一个 Route（off_topic / shortcut / age / no_results / rag），
同时写入指标与 router.search span。

# 降级

  - 相关性判定的 LLM 调用失败时按相关处理
  - 摘要失败时返回固定的兜底文本
  - 只有检索失败会以错误返回给调用方

# 缓存

相关性结果与摘要可选写入 Redis（Cache 接口），键为归一化查询与文档的
哈希。并发的相同摘要请求经 singleflight 合并。

# 导入

Ingestor.EnsureIngested 在完整文档 ID 不存在时抓取词条、分块并写入，
分块 ID 为 {document_id}_chunk_{i}；Reingest 先清除旧文档与分块。
*/
package assistant
