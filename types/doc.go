// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package types 提供 AgentChat 全局共享的错误类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包。API 层、会话层与
配置层统一使用这里的 Error / ErrorCode 表达面向调用方的错误。

# 核心类型

  - Error / ErrorCode：结构化错误，含 HTTP 状态码、Retryable 标记、
    校验明细（Details）与底层 Cause
  - AsError / IsErrorCode / IsRetryable / GetErrorCode：沿错误链查询
*/
package types
