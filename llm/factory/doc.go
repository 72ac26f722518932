// Package factory 提供 LLM Provider 的集中式工厂，
// 按 kind 创建 Provider 并统一包装重试，避免 llm 包与 provider 子包循环依赖。
package factory
