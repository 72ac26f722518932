// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package openai 提供 OpenAI Chat Completions 的 Provider 适配。

OpenAIProvider 嵌入 openaicompat.Provider，默认 BaseURL 为
https://api.openai.com，未配置模型时回退到 gpt-4o-mini；配置了
Organization 时附加 OpenAI-Organization 请求头。
*/
package openai
