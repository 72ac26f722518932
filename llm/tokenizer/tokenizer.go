package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数。
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，含每条消息的角色与分隔符开销。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度。
	MaxTokens() int

	// Name 返回分词器的名称。
	Name() string
}

// Message 是 tokenizer 包使用的轻量消息结构，避免依赖 llm 包。
type Message struct {
	Role    string
	Content string
}

var (
	cache   = make(map[string]Tokenizer)
	cacheMu sync.Mutex
)

// ForModel 返回适合 provider/model 的分词器。
// openai 走 tiktoken（初始化失败时回退估算器），其他 provider 使用估算器。
// 结果按 provider/model 缓存。
func ForModel(provider, model string) Tokenizer {
	key := provider + "/" + model
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if t, ok := cache[key]; ok {
		return t
	}

	var t Tokenizer
	if strings.EqualFold(provider, "openai") {
		tk := NewTiktokenTokenizer(model)
		t = WithFallback(tk, NewEstimatorTokenizer(model, tk.MaxTokens()))
	} else {
		t = NewEstimatorTokenizer(model, 0)
	}
	cache[key] = t
	return t
}

// fallbackTokenizer 在 primary 出错时改用 secondary。
type fallbackTokenizer struct {
	primary   Tokenizer
	secondary Tokenizer
}

// WithFallback 组合两个分词器：primary 返回错误时由 secondary 计数。
func WithFallback(primary, secondary Tokenizer) Tokenizer {
	return &fallbackTokenizer{primary: primary, secondary: secondary}
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	if n, err := f.primary.CountTokens(text); err == nil {
		return n, nil
	}
	return f.secondary.CountTokens(text)
}

func (f *fallbackTokenizer) CountMessages(messages []Message) (int, error) {
	if n, err := f.primary.CountMessages(messages); err == nil {
		return n, nil
	}
	return f.secondary.CountMessages(messages)
}

func (f *fallbackTokenizer) MaxTokens() int { return f.primary.MaxTokens() }

func (f *fallbackTokenizer) Name() string { return f.primary.Name() + "|" + f.secondary.Name() }
