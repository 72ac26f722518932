package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 基于 tiktoken 为 OpenAI 系列模型精确计数。
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

// modelEncodings 将模型名前缀映射到 tiktoken 编码与上下文大小。
// 按前缀从长到短匹配。
var modelEncodings = []struct {
	prefix    string
	encoding  string
	maxTokens int
}{
	{"gpt-4o-mini", "o200k_base", 128000},
	{"gpt-4o", "o200k_base", 128000},
	{"gpt-4.1", "o200k_base", 1047576},
	{"gpt-4-turbo", "cl100k_base", 128000},
	{"gpt-4", "cl100k_base", 8192},
	{"gpt-3.5-turbo", "cl100k_base", 16385},
	{"o1", "o200k_base", 200000},
	{"o3", "o200k_base", 200000},
}

// NewTiktokenTokenizer 为给定模型创建分词器；未知模型使用 cl100k_base。
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	t := &TiktokenTokenizer{model: model, encoding: "cl100k_base", maxTokens: 8192}
	for _, m := range modelEncodings {
		if strings.HasPrefix(model, m.prefix) {
			t.encoding = m.encoding
			t.maxTokens = m.maxTokens
			break
		}
	}
	return t
}

// init 延迟加载编码表（首次使用时可能需要下载 BPE 数据）。
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	total += 3
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
