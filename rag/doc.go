// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供单词条问答所需的检索层：段落分块、向量存储以及
把 embedding 提供者与存储绑定在一起的 Collection。

# 核心接口/类型

  - VectorStore — 向量数据库统一接口（AddDocuments / Search / Delete / Update / Count / Get）
  - Clearable / DocumentLister — 可选能力，通过类型断言使用
  - InMemoryVectorStore — 进程内暴力余弦检索
  - QdrantStore — Qdrant REST API 实现，点 ID 由文档 ID 派生
  - SQLVectorStore — gorm 实现，支持 postgres / mysql / sqlite
  - Collection — 按文本读写：批量并发生成向量，Query 返回 ids/documents/metadatas/distances
  - ParagraphChunker — 按 "\n\n" 段落累积分块，附带 token_count
  - Tokenizer — 分块用分词器接口，LLMTokenizerAdapter 适配 llm/tokenizer

# 距离约定

所有后端的 Search 结果按 Distance 升序排列，Distance = 1 - 余弦相似度，
Score 为余弦相似度本身。

# 配置桥接

NewVectorStoreFromConfig / NewCollectionFromConfig / NewChunkerFromConfig
从 config.Config 直接构建运行时实例。
*/
package rag
