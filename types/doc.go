// Copyright (c) DemoForge Authors.
// Licensed under the MIT License.

/*
Package types 提供 DemoForge 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 store、pipeline、llm、
sandbox、api 等上层模块提供统一的类型契约。所有跨包共享的实体、
状态枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Owner / Document / Artifact — 三种持久化实体
  - DocumentStatus / ArtifactStatus — 封闭状态枚举，含显式迁移表
  - DocumentMetadata — 提取的结构化元数据（作者、摘要、关键词）
  - ExecutionResults / RenderSummary — 沙箱执行产出
  - DocumentPatch / ArtifactPatch — 指针字段部分更新载体
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码与 Retryable 标记
  - Subject — 已认证调用方身份
  - Message / Role — 模型对话消息

# 主要能力

  - 状态机约束：CanTransition / IsTerminal，非法迁移在写入前被拒绝
  - Context 传播：WithSubject / SubjectFrom、WithRequestID / RequestIDFrom
  - 错误工具链：NewError / WithCause / WithHTTPStatus / IsRetryable / GetErrorCode
*/
package types
