// Package telemetry 负责 WikiChat 的 OpenTelemetry 初始化：
// 启用时通过 OTLP gRPC 导出 traces 与 metrics，关闭时保留全局 noop provider。
package telemetry
