// 版权所有 2025 DemoForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 提供数据库 Schema 迁移管理能力，支持 PostgreSQL、
MySQL 与 SQLite 三种数据库，基于 golang-migrate 实现。

# 概述

本包通过 embed.FS 内嵌各数据库方言的 SQL 迁移文件（owners、
documents、artifacts 三张核心表及其索引），结合 golang-migrate
引擎实现版本化的 Schema 变更管理。支持正向迁移、回滚、跳转到
指定版本以及强制设置版本号等操作。SQLite 使用 modernc.org/sqlite
纯 Go 驱动，无需 CGO。

# 核心接口与类型

  - Migrator：迁移器接口，定义 Up/Down/DownAll/Goto/Force/
    Version/Status/Info/Close 等操作集。
  - DefaultMigrator：Migrator 的默认实现，封装 golang-migrate 实例
    与数据库连接管理。
  - Config：迁移配置，包含数据库类型、连接 URL 与迁移表名。
  - DatabaseType：数据库类型枚举（postgres/mysql/sqlite）。
  - MigrationStatus / MigrationInfo：迁移状态与摘要信息。
  - CLI：命令行交互层，封装 Migrator 提供格式化输出。

# 主要能力

  - 多数据库支持：通过 DatabaseType 与内嵌 SQL 文件自动适配方言。
  - 工厂函数：NewMigratorFromConfig / NewMigratorFromDatabaseConfig
    复用配置层的 MigrationURL，NewMigratorFromURL 支持显式 URL。
  - CLI 集成：CLI 类型提供 RunUp/RunDown/RunStatus/RunVersion 等
    面向终端的格式化操作，由 demoforge migrate 子命令调用。
*/
package migration
