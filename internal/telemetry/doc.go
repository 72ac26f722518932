// Package telemetry 封装 OpenTelemetry SDK 初始化。
// 启用时通过 OTLP gRPC 导出 trace 与指标；禁用时不连接任何外部服务，
// 会话调度器与 HTTP 中间件拿到的是 noop tracer。
package telemetry
