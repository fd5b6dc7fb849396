// Copyright (c) DemoForge Authors.
// Licensed under the MIT License.

/*
包 llm 提供 DemoForge 的大语言模型接入层。

# 概述

本包屏蔽不同模型服务商在接口、鉴权与错误语义上的差异，
对上层管线暴露一致的请求与响应模型。DemoForge 的两类模型调用
（文档内容分析、演示代码生成）均为单次同步补全，因此本包
不包含流式输出、工具调用与多 Provider 路由。

# Provider 抽象

核心接口是 [Provider]，包含补全、健康检查与标识：

  - Completion：同步聊天补全，一次请求返回完整响应
  - HealthCheck：轻量探活，用于就绪检查
  - Name：Provider 唯一标识

# 核心类型

  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [ChatChoice] / [ChatUsage]：候选输出与 token 用量
  - [HealthStatus]：健康检查状态
  - [Error] / [ErrorCode]：统一错误模型，携带 HTTP 状态与可重试标记

# 辅助函数

  - [FirstChoice]：安全取出首个候选输出
  - [StripFences]：剥离模型输出外层的 markdown 代码围栏

# 相关子包

- llm/providers：OpenAI 兼容协议适配实现。
- llm/tokenizer：token 计数与估算，用于提示词预算控制。
*/
package llm
