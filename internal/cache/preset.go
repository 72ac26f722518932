package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BaSui01/agentchat/agent/conversation"
	"go.uber.org/zap"
)

const presetKeyPrefix = "preset:"

// ErrPresetNotFound is returned when no preset is stored under a name.
var ErrPresetNotFound = errors.New("preset not found")

var presetNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// Preset 是保存下来的会话 setup，不包含任何凭据。
type Preset struct {
	Name             string               `json:"name"`
	Topic            string               `json:"topic"`
	Agents           []conversation.Agent `json:"agents"`
	Instruction      string               `json:"instruction,omitempty"`
	MaxTurnsPerAgent int                  `json:"max_turns_per_agent,omitempty"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// PresetFromConfig copies the setup fields of cfg. Credentials are dropped.
func PresetFromConfig(name string, cfg conversation.ConversationConfig) Preset {
	return Preset{
		Name:             name,
		Topic:            cfg.Topic,
		Agents:           append([]conversation.Agent(nil), cfg.Agents...),
		Instruction:      cfg.Instruction,
		MaxTurnsPerAgent: cfg.MaxTurnsPerAgent,
	}
}

// Config returns a ConversationConfig without credentials.
func (p Preset) Config() conversation.ConversationConfig {
	return conversation.ConversationConfig{
		Topic:            p.Topic,
		Agents:           append([]conversation.Agent(nil), p.Agents...),
		Instruction:      p.Instruction,
		MaxTurnsPerAgent: p.MaxTurnsPerAgent,
	}
}

// ValidatePresetName checks that name is usable as a key segment.
func ValidatePresetName(name string) error {
	if !presetNameRe.MatchString(name) {
		return fmt.Errorf("invalid preset name %q: use 1-64 letters, digits, '_', '-' or '.'", name)
	}
	return nil
}

// HitRecorder receives cache hit/miss events. metrics.Collector implements it.
type HitRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// PresetStore 在 Redis 中以 JSON 保存会话 setup 预设。
type PresetStore struct {
	cache    *Manager
	ttl      time.Duration
	recorder HitRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewPresetStore creates a store on top of m. ttl 0 uses the manager default.
func NewPresetStore(m *Manager, ttl time.Duration, recorder HitRecorder, logger *zap.Logger) *PresetStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresetStore{
		cache:    m,
		ttl:      ttl,
		recorder: recorder,
		logger:   logger.With(zap.String("component", "preset_store")),
		now:      time.Now,
	}
}

// Save validates and stores p, overwriting any preset with the same name.
func (s *PresetStore) Save(ctx context.Context, p Preset) (Preset, error) {
	if err := ValidatePresetName(p.Name); err != nil {
		return Preset{}, err
	}
	if err := conversation.ValidateConfig(p.Config()); err != nil {
		return Preset{}, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.cache.SetJSON(ctx, presetKeyPrefix+p.Name, p, s.ttl); err != nil {
		return Preset{}, err
	}
	s.logger.Info("preset saved", zap.String("name", p.Name), zap.Int("agents", len(p.Agents)))
	return p, nil
}

// Get loads the preset stored under name.
func (s *PresetStore) Get(ctx context.Context, name string) (Preset, error) {
	var p Preset
	err := s.cache.GetJSON(ctx, presetKeyPrefix+name, &p)
	switch {
	case IsCacheMiss(err):
		s.record(false)
		return Preset{}, ErrPresetNotFound
	case err != nil:
		return Preset{}, err
	}
	s.record(true)
	return p, nil
}

// Delete removes the preset. Deleting a missing preset returns ErrPresetNotFound.
func (s *PresetStore) Delete(ctx context.Context, name string) error {
	n, err := s.cache.Delete(ctx, presetKeyPrefix+name)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPresetNotFound
	}
	s.logger.Info("preset deleted", zap.String("name", name))
	return nil
}

// List returns the names of all stored presets, sorted.
func (s *PresetStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.cache.Keys(ctx, presetKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, presetKeyPrefix))
	}
	slices.Sort(names)
	return names, nil
}

func (s *PresetStore) record(hit bool) {
	if s.recorder == nil {
		return
	}
	if hit {
		s.recorder.RecordCacheHit("preset")
	} else {
		s.recorder.RecordCacheMiss("preset")
	}
}
