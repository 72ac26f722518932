// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 llm 是 AgentChat 的文本生成接入层，对会话层屏蔽 OpenAI 与 Gemini
在鉴权、消息格式与错误语义上的差异。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name

# 核心类型

  - [ChatRequest] / [ChatResponse]：聊天请求与响应
  - [Error] / [ErrorCode]：带 HTTP 状态与 Retryable 标记的统一错误
  - [ProviderRegistry]：按 provider kind 索引的线程安全注册表
  - [CredentialOverride]：单次调用凭据覆盖，通过 context 传递

# 辅助函数

  - [FirstChoice] / [ResponseText]：安全读取响应文本，空响应视为 MalformedResponse
  - [WithCredentialOverride] / [CredentialOverrideFromContext]

# 中间件

[Chain] 按顺序包装 Provider：Recovery、Logging、Metrics 与
[CircuitBreakerMiddleware]。熔断只统计 [IsProviderFailure] 认定的上游故障。

具体 Provider 实现在 llm/providers 子包，按配置创建由 llm/factory 负责。
*/
package llm
