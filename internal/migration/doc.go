// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理 documents 表的 Schema 迁移，支持 PostgreSQL、
MySQL 与 SQLite 三种方言，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌在 migrations/<driver>/ 下。
迁移器不自行建立连接，而是接收一个已打开的 *sql.DB（通常来自
database.Open 返回的 gorm 连接），因此与 SQL 向量存储共用同一套驱动。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close。
  - CLI：面向终端的格式化输出，对应 wikichat migrate 子命令。
  - NewMigratorFromDatabaseConfig：按 database.driver 选择方言。
*/
package migration
