// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package testutil 提供 AgentChat 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 日志: TestLogger 把 zap 输出接到 t.Log
  - 断言工具: AssertMessagesEqual
  - 异步辅助: WaitFor
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockProvider（llm.Provider），支持按序响应、延迟、
    错误注入与调用记录
  - testutil/fixtures: 预置会话配置与 ChatResponse 样例

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse("hello")
	resp, err := provider.Completion(ctx, req)
	require.NoError(t, err)
*/
package testutil
