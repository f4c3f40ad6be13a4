// Package config 提供 WikiChat 的配置管理功能。
//
// 配置来源优先级为 默认值 → YAML 文件 → 环境变量（WIKICHAT_ 前缀），
// 并提供基于轮询的配置文件热重载（Watcher），用于运行时调整日志级别等参数。
package config
