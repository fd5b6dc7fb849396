// 版权所有 2025 DemoForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供状态存储数据库的连接与连接池管理，支持健康检查、
统计信息采集与事务重试。

# 概述

本包通过 Open 按配置选择驱动（postgres/mysql/sqlite）打开 GORM 连接，
并以 PoolManager 封装 database/sql 的连接池配置，统一管理连接生命周期、
空闲回收与最大连接数限制。后台健康检查定时探活，异常时通过 zap 日志
输出诊断信息。TranslateError 统一各驱动的唯一键冲突错误，供上层存储
识别重复写入。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，包含最大空闲连接数、最大打开连接数、
    连接最大生命周期、空闲超时与健康检查间隔。
  - PoolStats：友好格式的连接池统计信息。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 驱动选择：Open 依据配置的 Driver 构造对应 dialector。
  - 连接池调优：通过 MaxIdleConns/MaxOpenConns/ConnMaxLifetime 精细控制。
  - 健康检查：后台定时 PingContext 探活，输出连接数与空闲数。
  - 事务管理：WithTransaction 提供单次事务执行，
    WithTransactionRetry 支持指数退避重试（死锁、序列化失败等场景）。
  - 统计采集：GetStats 返回结构化的连接池运行指标。
*/
package database
