package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialOverride_Masked(t *testing.T) {
	c := CredentialOverride{APIKey: "sk-secret"}
	assert.NotContains(t, fmt.Sprintf("%v", c), "sk-secret")

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_key":"***"}`, string(data))

	data, _ = json.Marshal(CredentialOverride{})
	assert.JSONEq(t, `{}`, string(data))
}

func TestCredentialOverride_Context(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithCredentialOverride(ctx, CredentialOverride{}))

	_, ok := CredentialOverrideFromContext(ctx)
	assert.False(t, ok)

	ctx = WithCredentialOverride(ctx, CredentialOverride{APIKey: "k"})
	c, ok := CredentialOverrideFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "k", c.APIKey)
}
