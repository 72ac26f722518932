// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package api 定义 AgentChat HTTP/WebSocket API 的请求与响应类型。
//
// # 端点
//
//	POST   /api/v1/conversations               创建并启动会话
//	GET    /api/v1/conversations               会话列表
//	GET    /api/v1/conversations/{id}          状态快照
//	DELETE /api/v1/conversations/{id}          销毁会话
//	POST   /api/v1/conversations/{id}/messages 用户输入（/pause、/resume 被当作命令）
//	POST   /api/v1/conversations/{id}/pause    暂停
//	POST   /api/v1/conversations/{id}/resume   恢复并重置轮次预算
//	POST   /api/v1/conversations/{id}/stop     停止（终态）
//	POST   /api/v1/conversations/{id}/tick     手动调度一次
//	GET    /api/v1/conversations/{id}/ws       WebSocket 状态流
//	GET    /api/v1/presets                     预设列表
//	GET|PUT|DELETE /api/v1/presets/{name}      预设读写
//
// 除 WebSocket 外，所有响应使用 handlers.Response 信封
// {success, data, error, timestamp}。
//
// # 认证
//
// 配置了 server.api_keys 时需要 X-API-Key 头；配置了 server.jwt_secret 时
// 需要 Authorization: Bearer <HS256 token>。健康检查端点不需要认证。
package api
