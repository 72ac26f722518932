// =============================================================================
// 📦 测试数据工厂 - 会话配置测试数据
// =============================================================================
package fixtures

import (
	"fmt"

	"github.com/BaSui01/agentchat/agent/conversation"
)

// Alice 使用 OpenAI 的乐观派
func Alice() conversation.Agent {
	return conversation.Agent{
		Name:     "Alice",
		Persona:  "An optimistic engineer who likes concrete examples.",
		Provider: conversation.ProviderOpenAI,
		Model:    "gpt-4o-mini",
	}
}

// Bob 使用 Gemini 的怀疑派
func Bob() conversation.Agent {
	return conversation.Agent{
		Name:     "Bob",
		Persona:  "A skeptical economist who asks for evidence.",
		Provider: conversation.ProviderGemini,
		Model:    "gemini-2.0-flash",
	}
}

// Carol 使用 OpenAI 的调和者
func Carol() conversation.Agent {
	return conversation.Agent{
		Name:     "Carol",
		Persona:  "A pragmatic product manager who summarizes.",
		Provider: conversation.ProviderOpenAI,
	}
}

// TwoAgentConfig 返回两人、无预算的配置
func TwoAgentConfig() conversation.ConversationConfig {
	return conversation.ConversationConfig{
		Topic:  "Should cities ban cars from downtown?",
		Agents: []conversation.Agent{Alice(), Bob()},
	}
}

// BudgetedConfig 返回三人、每人 maxTurns 轮的配置
func BudgetedConfig(maxTurns int) conversation.ConversationConfig {
	return conversation.ConversationConfig{
		Topic:            "Is remote work here to stay?",
		Agents:           []conversation.Agent{Alice(), Bob(), Carol()},
		Instruction:      "Keep every reply under three sentences.",
		MaxTurnsPerAgent: maxTurns,
	}
}

// Roster 生成 n 个 OpenAI Agent：Agent1..AgentN
func Roster(n int) []conversation.Agent {
	out := make([]conversation.Agent, n)
	for i := range out {
		out[i] = conversation.Agent{
			Name:     fmt.Sprintf("Agent%d", i+1),
			Persona:  "A helpful participant.",
			Provider: conversation.ProviderOpenAI,
		}
	}
	return out
}
