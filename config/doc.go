// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package config 提供 AgentChat 服务的配置加载。
//
// 加载顺序为 默认值 → YAML 文件 → AGENTCHAT_* 环境变量 → 验证器。
// 环境变量名由各层 env tag 以下划线拼接，例如
// AGENTCHAT_SCHEDULER_TICK_INTERVAL=5s、AGENTCHAT_LLM_OPENAI_API_KEY=sk-...。
// 匿名嵌入的结构体不增加前缀。
package config
