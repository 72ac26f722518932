// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package main 提供 AgentChat 服务端程序入口。

# 子命令

  - serve   ：加载配置，启动 API（HTTP + WebSocket）与独立的 /metrics 端口
  - validate：加载并校验配置后退出
  - health  ：请求运行中实例的 /health
  - version ：打印通过 ldflags 注入的 Version、BuildTime、GitCommit

# 中间件链（由外到内）

Recovery → RequestID → SecurityHeaders → RequestLogger → Metrics → OTelTracing →
CORS → RateLimiter → JWTAuth（配置 jwt_secret 时）→ APIKeyAuth（配置 api_keys 时）。

同时配置 API Key 与 JWT 时，两者任一通过即可；健康检查与版本端点不需要认证。

# 关闭

收到 SIGINT/SIGTERM 后停止接收新请求，然后并发拆除全部会话、关闭 Redis 与
指标服务，并刷新遥测数据。
*/
package main
