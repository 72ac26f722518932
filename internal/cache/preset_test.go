package cache

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentchat/agent/conversation"
	"github.com/BaSui01/agentchat/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct{ hits, misses int }

func (r *countingRecorder) RecordCacheHit(string)  { r.hits++ }
func (r *countingRecorder) RecordCacheMiss(string) { r.misses++ }

func samplePreset(name string) Preset {
	return PresetFromConfig(name, conversation.ConversationConfig{
		Topic: "four-day work week",
		Agents: []conversation.Agent{
			{Name: "Ada", Persona: "Founder", Provider: conversation.ProviderOpenAI, Model: "gpt-4o-mini"},
			{Name: "Lin", Persona: "Economist", Provider: conversation.ProviderGemini},
		},
		Instruction:      "Be concise.",
		MaxTurnsPerAgent: 3,
		Credentials:      conversation.NewCredentials(map[conversation.ProviderKind]string{conversation.ProviderOpenAI: "sk-secret"}),
	})
}

func TestPresetStore_SaveGetListDelete(t *testing.T) {
	mr, manager := setupTestRedis(t)
	rec := &countingRecorder{}
	store := NewPresetStore(manager, time.Hour, rec, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	saved, err := store.Save(ctx, samplePreset("work-week"))
	require.NoError(t, err)
	assert.Equal(t, fixed, saved.UpdatedAt)
	_, err = store.Save(ctx, samplePreset("alpha"))
	require.NoError(t, err)

	raw, err := mr.Get("test:preset:work-week")
	require.NoError(t, err)
	assert.NotContains(t, raw, "sk-secret")
	assert.Equal(t, time.Hour, mr.TTL("test:preset:work-week"))

	got, err := store.Get(ctx, "work-week")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
	cfg := got.Config()
	assert.True(t, cfg.Credentials.Empty())
	assert.Equal(t, 3, cfg.MaxTurnsPerAgent)
	assert.NoError(t, conversation.ValidateConfig(cfg))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "work-week"}, names)

	require.NoError(t, store.Delete(ctx, "work-week"))
	assert.ErrorIs(t, store.Delete(ctx, "work-week"), ErrPresetNotFound)
	_, err = store.Get(ctx, "work-week")
	assert.ErrorIs(t, err, ErrPresetNotFound)

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestPresetStore_SaveValidates(t *testing.T) {
	_, manager := setupTestRedis(t)
	store := NewPresetStore(manager, 0, nil, nil)
	ctx := context.Background()

	_, err := store.Save(ctx, samplePreset("bad name!"))
	assert.Error(t, err)

	p := samplePreset("ok")
	p.Agents = p.Agents[:1]
	_, err = store.Save(ctx, p)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
}

func TestValidatePresetName(t *testing.T) {
	for _, ok := range []string{"a", "debate_1", "v1.2-final"} {
		assert.NoError(t, ValidatePresetName(ok), ok)
	}
	for _, bad := range []string{"", "-lead", "has space", "slash/es", string(make([]byte, 65))} {
		assert.Error(t, ValidatePresetName(bad), bad)
	}
}
