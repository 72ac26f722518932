// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是 openai / gemini 两个适配器的公共基础层，负责错误映射、
OpenAI 线格式转换与重试包装。

# 核心类型

  - BaseProviderConfig / OpenAIConfig / GeminiConfig：Provider 配置
  - OpenAICompat*：Chat Completions 请求/响应结构体
  - RetryableProvider：带指数退避的 Provider 包装器，仅重试 Retryable 错误

# 核心函数

  - MapHTTPError / MapTransportError / MalformedResponse：语义化 llm.Error
  - ReadErrorMessage：解析上游错误体
  - ConvertMessagesToOpenAI / ToLLMChatResponse：格式转换
  - ChooseModel / ResolveAPIKey：模型与凭据选择
*/
package providers
