package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstChoice(t *testing.T) {
	tests := []struct {
		name    string
		resp    *ChatResponse
		wantErr bool
		errMsg  string
	}{
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
			errMsg:  "nil ChatResponse",
		},
		{
			name:    "empty choices",
			resp:    &ChatResponse{Choices: []ChatChoice{}},
			wantErr: true,
			errMsg:  "empty choices",
		},
		{
			name: "multiple choices returns first",
			resp: &ChatResponse{
				Choices: []ChatChoice{
					{Index: 0, Message: Message{Content: "first"}},
					{Index: 1, Message: Message{Content: "second"}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choice, err := FirstChoice(tt.resp)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.resp.Choices[0], choice)
		})
	}
}

func TestResponseText(t *testing.T) {
	text, err := ResponseText(&ChatResponse{
		Provider: "openai",
		Choices:  []ChatChoice{{Message: Message{Role: RoleAssistant, Content: "  hi there \n"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)

	_, err = ResponseText(&ChatResponse{
		Provider: "gemini",
		Choices:  []ChatChoice{{Message: Message{Content: "   "}}},
	})
	require.Error(t, err)
	llmErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrMalformedResponse, llmErr.Code)
	assert.Equal(t, "gemini", llmErr.Provider)

	_, err = ResponseText(nil)
	require.Error(t, err)
	assert.Equal(t, ErrMalformedResponse, err.(*Error).Code)
}
