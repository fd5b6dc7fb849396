// Copyright (c) DemoForge Authors.
// Licensed under the MIT License.

/*
包 pipeline 实现 DemoForge 的多阶段异步流水线编排核心。

# 概述

一份上传的文档经过两条相互衔接的流水线变成可交互演示：

	文档摄取:  processing ──→ ready | error
	演示生成:  generating ──→ executing ──→ ready | failed
	                └──────────→ failed

摄取流水线在文档创建时触发，调用分析模型抽取全文与元数据；
生成流水线由用户请求触发，同步阶段调用生成模型产出代码并落库，
随后经派发器转入沙箱执行阶段：部署、启动静态服务、抓取渲染结果、
持久化输出并无条件回收环境。

# 核心组件

  - [Ingestor]：文档摄取协调器，执行 RunExtraction。
  - [Generator]：演示生成编排器，执行同步阶段 Generate。
  - [Executor]：沙箱执行协调器，执行异步阶段 Execute。
  - [Dispatcher]：有界队列 + 工作池的延迟派发原语，
    阶段间通过它解耦，调用方永不阻塞在流水线时延上。
  - [Hub]：按 Owner 扇出的状态事件中心，供 WebSocket 状态推送使用。

# 错误语义

Unauthenticated / Unauthorized / NotFound / InvalidRequest 在任何
记录被创建或修改之前同步返回调用方；流水线一旦启动，阶段内错误
一律落入对应记录的终态（error / failed），绝不跨派发边界重新抛出。
没有自动重试，用户可见的重试永远是一条全新的流水线实例。

# 顺序保证

同一 Artifact 内，沙箱执行任务只会在 generating → executing 补丁
成功返回之后才被调度；不同流水线实例之间无任何顺序约束。
*/
package pipeline
