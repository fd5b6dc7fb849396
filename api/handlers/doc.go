// Copyright (c) DemoForge Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 DemoForge HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 DemoForge 所有 HTTP 端点的请求处理逻辑，
包括文档上传与查询、演示生成、Blob 取回、WebSocket 状态推送、
健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - DocumentsHandler  — 文档上传（multipart）、点查询与列表
  - ArtifactsHandler  — 演示生成（同步生成 + 后台执行）、点查询与列表
  - BlobsHandler      — 内容寻址对象取回（原始上传与渲染输出）
  - StatusHandler     — WebSocket 状态事件推送（按 Owner 订阅）
  - HealthHandler     — 服务健康检查（/health, /healthz, /ready）
  - Response          — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo         — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter    — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck       — 可插拔健康检查接口（数据库、缓存、沙箱运行时）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteAccepted / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 身份解析：认证中间件注入 Subject，Handler 懒创建对应 Owner
  - 异步受理：上传与生成返回 202，记录状态为权威进度
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
