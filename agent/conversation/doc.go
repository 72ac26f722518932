// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package conversation 实现多 Agent 轮流发言的对话调度核心。

# 概述

多个 Agent 共享同一份 transcript，由 SpeakerSelector 决定下一位发言人，
ResponseGenerator 生成其回复。Scheduler 独占全部可变状态：状态机、
自动轮次定时器、in-flight 互斥标志、每个 Agent 的轮次预算以及 transcript。

# 核心类型

  - Transcript：不可变的追加式记录序列，Append 返回新快照
  - BudgetTracker：每个 Agent 的剩余轮次，Reset 恢复到上限
  - SpeakerSelector：RoundRobinSelector 与基于 LLM 的 LLMSelector
  - ResponseGenerator：LLMGenerator 按 Agent.Provider 路由到 llm.Provider，
    失败统一为 *GenerationError
  - Scheduler：actor 模型，公开方法与异步回调经同一 mailbox 串行执行
  - Manager：校验配置、创建会话、按 id 管理生命周期

# 状态机

	Setup --Initialize--> Running
	Running --Pause / 预算全部耗尽--> Paused
	Paused --Resume--> Running
	Running|Paused --Stop--> Stopped

Stopped 为终态。非法转换返回 ErrInvalidTransition。

# 轮次

每次 tick 在 in-flight 时为空操作。单轮失败只会写入一条 system 记录，
不改变状态也不停止定时器。暂停或停止不会中断进行中的调用，其结果仍会追加。
*/
package conversation
