// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package handlers 提供 AgentChat HTTP API 的请求处理器实现。

# 核心类型

  - ConversationHandler：会话创建、查询、删除，以及 messages / pause / resume / stop / tick 控制端点
  - StreamHandler      ：WebSocket 状态推送，接受 input 与 tick 帧
  - PresetHandler      ：Redis 中会话预设的增删查
  - HealthHandler      ：/health、/ready、/version 与可插拔 HealthCheck
  - Response / ErrorInfo：统一 JSON 响应信封

# 错误映射

ToAPIError 把会话层与缓存层的哨兵错误转换为 *types.Error：
非法状态迁移返回 409，已拆除的会话返回 410，预设缺失返回 404，
未知错误一律 INTERNAL_ERROR，不向客户端泄露内部细节。

# 依赖注入

处理器只依赖小接口（ConversationManager、PresetStore、ActiveGauge），
测试中可直接替换为桩实现。
*/
package handlers
