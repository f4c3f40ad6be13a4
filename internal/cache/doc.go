// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 是相关性判定与摘要结果的 Redis 缓存。

Manager 给每个键加 KeyPrefix，提供 Get/Set、GetJSON/SetJSON、Delete
和按命名空间批量删除的 DeleteNamespace。配置了 HealthCheckInterval 时
后台定期 PING，只在可用性变化时打日志。

键由 HashKey(namespace, parts...) 生成，形如 relevance:<sha256> 或
summary:<sha256>。重新抓取词条后 ingest --force 会清空 summary 命名空间。

未命中返回 ErrCacheMiss，Close 之后返回 ErrClosed。调用方把任何缓存错误
都当作未命中并回源到 LLM。
*/
package cache
