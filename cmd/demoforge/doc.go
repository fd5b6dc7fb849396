// Copyright (c) DemoForge Authors.
// Licensed under the MIT License.

/*
Package main 提供 DemoForge 服务端程序入口。

# 概述

cmd/demoforge 是 DemoForge 的可执行入口，提供 HTTP API 服务、
数据库迁移、健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、
结构化日志（zap）、Prometheus 指标采集与 OpenTelemetry 追踪。

# 核心类型

  - Server           — 主服务器，组装存储、模型、沙箱与流水线，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、migrate（数据库迁移）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、OTelTracing、CORS、RateLimiter（基于 IP）、Identity（JWT Bearer）
  - 存储后端按配置装配：GORM（postgres/mysql/sqlite）、MongoDB 或内存实现，
    可选 Redis 终态记录读缓存
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 排空流水线 → 释放缓存与遥测 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
