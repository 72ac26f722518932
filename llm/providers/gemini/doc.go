// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package gemini 提供 Google Gemini generateContent 接口的 Provider 适配。

# 协议差异

  - 认证使用 x-goog-api-key 请求头
  - system 消息合并进 systemInstruction
  - assistant 角色映射为 model，相邻同角色消息合并
  - 无效密钥返回 400 API_KEY_INVALID，由 providers.MapHTTPError 归为未授权
*/
package gemini
