package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse (model returned no choices)")
	}
	return resp.Choices[0], nil
}

// ResponseText 返回第一个 choice 的非空文本。
// 响应缺失或文本为空时返回 ErrMalformedResponse。
func ResponseText(resp *ChatResponse) (string, error) {
	choice, err := FirstChoice(resp)
	if err != nil {
		return "", &Error{
			Code: ErrMalformedResponse, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Provider: providerOf(resp),
		}
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", &Error{
			Code: ErrMalformedResponse, Message: "model returned empty content",
			HTTPStatus: http.StatusBadGateway, Provider: providerOf(resp),
		}
	}
	return text, nil
}

func providerOf(resp *ChatResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Provider
}
