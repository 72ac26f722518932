// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 感知估算器，用于会话上下文窗口裁剪。
package tokenizer
