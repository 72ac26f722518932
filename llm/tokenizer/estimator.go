package tokenizer

import "unicode"

const (
	defaultContextWindow = 4096

	// 经验值：拉丁文本约 4 字符一个 token，汉字/假名/谚文约 1.5 字符
	latinCharsPerToken = 4.0
	wideCharsPerToken  = 1.5

	perMessageOverhead = 4
	replyPrimer        = 3
)

// EstimatorTokenizer approximates token counts from rune classes. Gemini
// turns and any model tiktoken does not know are counted with it.
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer creates an estimator; maxTokens <= 0 uses 4096.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = defaultContextWindow
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

// CountTokens never fails; non-empty text counts as at least one token.
func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var wide, other int
	for _, r := range text {
		if isWide(r) {
			wide++
		} else {
			other++
		}
	}
	n := int(float64(wide)/wideCharsPerToken + float64(other)/latinCharsPerToken)
	return max(n, 1), nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := replyPrimer
	for _, m := range messages {
		n, _ := e.CountTokens(m.Content)
		total += n + perMessageOverhead
	}
	return total, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

// isWide reports CJK scripts and full-width forms, which tokenize far denser than Latin text.
func isWide(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}
