// =============================================================================
// 📦 测试数据工厂 - LLM 响应测试数据
// =============================================================================
package fixtures

import (
	"time"

	"github.com/BaSui01/agentchat/llm"
)

// SimpleResponse 返回简单的文本响应
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-4o-mini",
		Choices: []llm.ChatChoice{{
			Index:        0,
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
		Usage:     SmallUsage(),
		CreatedAt: time.Now(),
	}
}

// ResponseWithUsage 返回带自定义 Token 使用量的响应
func ResponseWithUsage(content string, promptTokens, completionTokens int) *llm.ChatResponse {
	resp := SimpleResponse(content)
	resp.Usage = llm.ChatUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
	return resp
}

// EmptyChoicesResponse 返回没有 choice 的响应
func EmptyChoicesResponse() *llm.ChatResponse {
	resp := SimpleResponse("")
	resp.Choices = nil
	return resp
}

// SmallUsage 返回小量 Token 使用
func SmallUsage() llm.ChatUsage {
	return llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}
}

// ModeratorAnswer 返回主持人选人的回答
func ModeratorAnswer(name string) *llm.ChatResponse {
	return SimpleResponse("Next speaker: " + name)
}
