// Copyright (c) DemoForge Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 DemoForge 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertJSONEqual /
    AssertNoError / AssertError / AssertContains 等
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual，
    支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON / CopyMessages，
    简化测试数据构造与深拷贝

# 子包

  - testutil/mocks: Mock 实现，包括 MockProvider（模型提供商）、
    MockAnalyzer（文档分析器）、MockSandboxProvider（沙箱环境）、
    FailingBlobStore（对象存储失败注入），均支持 Builder 模式与错误注入
  - testutil/fixtures: 测试数据工厂，提供各生命周期阶段的文档与产物记录、
    分析响应样例、生成代码样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse(fixtures.DemoHTML())
	resp, err := provider.Completion(ctx, req)
	testutil.AssertNoError(t, err)
*/
package testutil
