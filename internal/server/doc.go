// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 server 提供 HTTP 服务器生命周期管理。

Manager 封装 net/http.Server：Start 非阻塞启动（配置证书时使用
tlsutil 的加固 TLS 配置），Run 阻塞直到 ctx 结束或服务异常，
Shutdown 先排空请求，再用 errgroup 并发执行 OnShutdown 注册的钩子，
例如关闭全部会话调度器与 Redis 连接。
*/
package server
