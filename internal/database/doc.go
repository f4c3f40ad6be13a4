// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 负责打开 SQL 向量存储所用的数据库连接，并管理连接池。

# 概述

Open 按 database.driver 选择 gorm 方言（postgres / mysql / 纯 Go 的
glebarez sqlite），PoolManager 统一管理连接生命周期、空闲回收与最大
连接数限制。后台健康检查定时探活，并把连接数上报给 StatsRecorder。

# 核心类型

  - Open / Dialector：按配置打开连接或仅构造方言。
  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，PoolConfigFromDatabase 从全局配置派生，
    sqlite 固定为单连接。
  - PoolStats：友好格式的连接池统计信息。
*/
package database
