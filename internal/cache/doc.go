// Copyright 2026 AgentChat Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 cache 提供基于 Redis 的键值存储，以及建立在其上的会话预设（Preset）存储。

# 核心类型

  - Manager：封装 go-redis 客户端。所有键统一加 KeyPrefix 前缀，
    提供 Get/Set/Delete/Keys 与 GetJSON/SetJSON，后台可选健康检查。
  - PresetStore：以 JSON 保存会话 setup（主题、参与者、指令、轮次预算），
    键为 "preset:{name}"。凭据永远不会写入 Redis。
  - HitRecorder：命中/未命中回调，metrics.Collector 实现了它。

# 错误语义

未命中返回 ErrCacheMiss（IsCacheMiss 判断），预设不存在返回 ErrPresetNotFound，
Manager 关闭后所有操作返回 ErrClosed。
*/
package cache
