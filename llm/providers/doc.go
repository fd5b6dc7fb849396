/*
# 概述

包 providers 提供跨模型服务商的通用适配与辅助能力，是具体 Provider
实现的公共基础层。openaicompat 子包依赖本包完成请求/响应转换与
错误映射。

# 核心类型

  - OpenAICompat* 系列 — OpenAI 兼容 API 的通用请求/响应结构体

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage — 从错误响应体中提取可读消息
  - ConvertMessagesToOpenAI — 统一消息格式转换
  - ToLLMChatResponse — OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ChooseModel — 按优先级选择模型（请求 > 默认 > 兜底）
  - BearerTokenHeaders — Bearer Token 标准认证 header 构建

# 支持能力

  - 统一错误语义映射（401/403/429/5xx/529 等）
  - OpenAI 兼容格式的请求/响应序列化
*/
package providers
