package conversation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentchat/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrConversationNotFound is returned for an unknown conversation id.
var ErrConversationNotFound = types.NewError(types.ErrNotFound, "conversation not found")

// ManagerOptions 会话管理器配置
type ManagerOptions struct {
	// NewSelector builds the selector for each conversation. nil uses
	// RoundRobinSelector.
	NewSelector   func(cfg ConversationConfig) SpeakerSelector
	Generator     ResponseGenerator
	TickInterval  time.Duration
	CommandPrefix string
	Observer      Observer
	Tracer        trace.Tracer
	Logger        *zap.Logger
}

// Session 是 Manager 中登记的一个会话。
type Session struct {
	ID        string
	CreatedAt time.Time
	*Scheduler
}

// Manager 负责 setup：校验配置、创建并初始化调度器、按 id 登记。
type Manager struct {
	opts     ManagerOptions
	logger   *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewSelector == nil {
		opts.NewSelector = func(ConversationConfig) SpeakerSelector { return RoundRobinSelector{} }
	}
	return &Manager{
		opts:     opts,
		logger:   opts.Logger.With(zap.String("component", "conversation_manager")),
		sessions: make(map[string]*Session),
	}
}

// Create validates cfg, starts a new conversation and registers it.
func (m *Manager) Create(ctx context.Context, cfg ConversationConfig) (*Session, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if m.opts.Generator == nil {
		return nil, types.NewError(types.ErrInternalError, "no response generator configured")
	}

	id := uuid.NewString()
	sched := NewScheduler(m.opts.NewSelector(cfg), m.opts.Generator, SchedulerOptions{
		ID:            id,
		TickInterval:  m.opts.TickInterval,
		CommandPrefix: m.opts.CommandPrefix,
		Observer:      m.opts.Observer,
		Tracer:        m.opts.Tracer,
		Logger:        m.opts.Logger,
	})
	if err := sched.Initialize(ctx, cfg); err != nil {
		sched.Teardown()
		return nil, fmt.Errorf("initialize conversation: %w", err)
	}

	sess := &Session{ID: id, CreatedAt: time.Now().UTC(), Scheduler: sched}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.logger.Info("conversation created", zap.String("id", id), zap.Int("agents", len(cfg.Agents)))
	return sess, nil
}

// Get returns the session registered under id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return sess, nil
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Remove tears the conversation down and forgets it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}
	sess.Teardown()
	m.logger.Info("conversation removed", zap.String("id", id))
	return nil
}

// Close tears down every session concurrently.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, sess := range sessions {
		g.Go(func() error {
			sess.cancel()
			select {
			case <-sess.Done():
				return nil
			case <-ctx.Done():
				return fmt.Errorf("teardown %s: %w", sess.ID, ctx.Err())
			}
		})
	}
	return g.Wait()
}
