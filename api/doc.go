// Package api 定义 WikiChat HTTP API 的请求与响应数据结构。
//
// # API Overview
//
// WikiChat 围绕单个维基百科词条提供问答服务：
//   - 文档增删查（/documents/）
//   - 相关性判定 + 检索 + 摘要（/search/）
//   - 集合信息（/collection/info）
//   - Websocket 对话（/ws/chat）
//   - 健康检查与版本信息
//
// 所有 HTTP 响应均使用统一信封：
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "..."}
//
// # Authentication
//
// 配置 server.api_keys 后，业务端点需要 X-API-Key 请求头：
//
//	X-API-Key: your-api-key
//
// 配置 server.jwt 后也可使用 Bearer Token（HS256 / RS256）。
// 健康检查、根路径与 /metrics 不需要认证。
package api
