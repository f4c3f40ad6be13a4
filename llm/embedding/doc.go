// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供统一的文本嵌入（Embedding）接口与实现，
用于把 Wikipedia 段落和用户查询转换为向量，支撑向量检索。

# 核心接口

  - Provider：统一嵌入接口，定义 Embed、EmbedQuery、EmbedDocuments 等方法。
  - EmbeddingRequest / EmbeddingResponse：标准化的请求与响应模型。

# 实现

  - OpenAIProvider：调用 OpenAI 兼容的 /v1/embeddings 端点，按 batch_size 分批，
    5xx/429/网络错误指数退避重试。
  - HashProvider：本地确定性特征哈希，无需网络与密钥。

# 使用方式

	provider, err := embedding.NewFromConfig(cfg.Embedding, cfg.LLM.MaxRetries, logger)
	vec, err := provider.EmbedQuery(ctx, "how old is he")
	vecs, err := provider.EmbedDocuments(ctx, []string{"段落1", "段落2"})
*/
package embedding
