// Package circuitbreaker 为上游 Provider 调用提供熔断保护：连续失败达到阈值后
// 快速失败，等待 ResetTimeout 后放行少量试探请求。
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// 错误定义
var (
	ErrOpen                   = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("too many calls while circuit breaker is half-open")
)

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int `yaml:"threshold" json:"threshold" env:"THRESHOLD"`

	// ResetTimeout 熔断恢复等待时间（Open -> HalfOpen）
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout" env:"RESET_TIMEOUT"`

	// HalfOpenMaxCalls 半开状态下同时放行的试探请求数
	HalfOpenMaxCalls int `yaml:"half_open_max_calls" json:"half_open_max_calls" env:"HALF_OPEN_MAX_CALLS"`

	// IsFailure 判断错误是否计入失败；nil 时除 context.Canceled 外的错误都计入
	IsFailure func(error) bool `yaml:"-" json:"-"`

	// OnStateChange 状态变更回调，在持锁外同步调用
	OnStateChange func(from, to State) `yaml:"-" json:"-"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker 熔断器接口
type CircuitBreaker interface {
	// Execute 执行调用；熔断打开时不调用 fn，直接返回 ErrOpen
	Execute(ctx context.Context, fn func(ctx context.Context) error) error

	// State 获取当前状态
	State() State

	// Reset 重置熔断器（手动恢复）
	Reset()
}

type breaker struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int       // 连续失败次数
	openedAt      time.Time // 最近一次打开时间
	halfOpenCalls int       // 半开状态下在途的试探请求
}

// New 创建熔断器，非法配置项回落到默认值
func New(config Config, logger *zap.Logger) CircuitBreaker {
	def := DefaultConfig()
	if config.Threshold <= 0 {
		config.Threshold = def.Threshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = def.ResetTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if config.IsFailure == nil {
		config.IsFailure = defaultIsFailure
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &breaker{
		config: config,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
		state:  StateClosed,
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// Execute 实现 CircuitBreaker.Execute
func (b *breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := b.before()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.after(probe, err)
	return err
}

// Do 是 Execute 的泛型版本
func Do[T any](ctx context.Context, cb CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// before 返回本次调用是否为半开试探
func (b *breaker) before() (bool, error) {
	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return false, ErrOpen
		}
		transition = b.setState(StateHalfOpen)
		b.halfOpenCalls = 1
		return true, nil
	case StateHalfOpen:
		if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
			return false, ErrTooManyCallsInHalfOpen
		}
		b.halfOpenCalls++
		return true, nil
	default:
		return false, nil
	}
}

func (b *breaker) after(probe bool, err error) {
	failed := b.config.IsFailure(err)

	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	if probe && b.state == StateHalfOpen {
		b.halfOpenCalls--
	}

	if !failed {
		if b.state == StateHalfOpen && probe {
			// 被取消的试探不能证明上游已恢复：保持半开，名额已归还
			if isContextErr(err) {
				b.logger.Debug("probe cancelled, circuit stays half-open", zap.Error(err))
				return
			}
			b.logger.Info("circuit closed after successful probe")
			transition = b.setState(StateClosed)
		}
		if err == nil {
			b.failures = 0
		}
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.config.Threshold {
			b.logger.Warn("circuit opened",
				zap.Int("failures", b.failures),
				zap.Error(err))
			b.openedAt = b.now()
			transition = b.setState(StateOpen)
		}
	case StateHalfOpen:
		if probe {
			b.logger.Warn("probe failed, circuit reopened", zap.Error(err))
			b.openedAt = b.now()
			transition = b.setState(StateOpen)
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// setState 必须持锁调用；返回的回调在解锁后执行
func (b *breaker) setState(to State) func() {
	from := b.state
	b.state = to
	if to != StateHalfOpen {
		b.halfOpenCalls = 0
	}
	if to == StateClosed {
		b.failures = 0
	}
	if cb := b.config.OnStateChange; cb != nil && from != to {
		return func() { cb(from, to) }
	}
	return nil
}

// State 实现 CircuitBreaker.State
func (b *breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 实现 CircuitBreaker.Reset
func (b *breaker) Reset() {
	b.mu.Lock()
	transition := b.setState(StateClosed)
	b.mu.Unlock()
	if transition != nil {
		transition()
	}
	b.logger.Info("circuit reset")
}
