package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultTickInterval is the autonomous loop period.
const DefaultTickInterval = 3 * time.Second

var (
	// ErrClosed is returned once the scheduler has been torn down.
	ErrClosed = errors.New("conversation: scheduler closed")
	// ErrNotStarted is returned for input submitted before Initialize.
	ErrNotStarted = errors.New("conversation: not started")
	// ErrStopped is returned for input submitted after Stop.
	ErrStopped = errors.New("conversation: stopped")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("conversation: empty message")
)

// Tick outcomes reported to the Observer.
const (
	TickSkipped       = "skipped"
	TickNoSpeaker     = "no_speaker"
	TickExhaustedSkip = "exhausted_skip"
	TickAutoPaused    = "auto_paused"
	TickGenerated     = "generated"
	TickFailed        = "failed"
)

// Observer receives scheduler events. internal/metrics.Collector implements it.
type Observer interface {
	ObserveTick(outcome string)
	ObserveTurn(agent, provider, outcome string, latency time.Duration)
	ObserveTransition(from, to string)
}

type nopObserver struct{}

func (nopObserver) ObserveTick(string)                               {}
func (nopObserver) ObserveTurn(string, string, string, time.Duration) {}
func (nopObserver) ObserveTransition(string, string)                 {}

// SchedulerOptions 调度器配置
type SchedulerOptions struct {
	ID            string
	TickInterval  time.Duration // 0 uses DefaultTickInterval, negative disables the timer
	CommandPrefix string
	Observer      Observer
	Tracer        trace.Tracer
	Logger        *zap.Logger
}

// Scheduler 拥有一个会话的全部可变状态。
//
// 所有状态只在 actor goroutine 中读写：公开方法和异步回调都以闭包形式
// 投递到同一个 mailbox，回调执行时读取的是当时的权威状态而非发起时的副本。
type Scheduler struct {
	id           string
	selector     SpeakerSelector
	generator    ResponseGenerator
	tickInterval time.Duration
	prefix       string
	observer     Observer
	tracer       trace.Tracer
	logger       *zap.Logger

	mailbox  chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	snapshot atomic.Pointer[State]

	// actor-owned
	status      Status
	cfg         ConversationConfig
	hasConfig   bool
	transcript  Transcript
	budget      *BudgetTracker
	inFlight    bool
	ticker      *time.Ticker
	turnCtx     context.Context
	turnSpan    trace.Span
	turnStart   time.Time
	subscribers map[int]chan State
	nextSubID   int
}

// NewScheduler creates a scheduler in Setup and starts its actor goroutine.
// Call Teardown to release it.
func NewScheduler(selector SpeakerSelector, generator ResponseGenerator, opts SchedulerOptions) *Scheduler {
	if opts.TickInterval == 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = DefaultCommandPrefix
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("agentchat/conversation")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		id:           opts.ID,
		selector:     selector,
		generator:    generator,
		tickInterval: opts.TickInterval,
		prefix:       opts.CommandPrefix,
		observer:     opts.Observer,
		tracer:       opts.Tracer,
		logger: opts.Logger.With(
			zap.String("component", "conversation_scheduler"),
			zap.String("conversation_id", opts.ID)),
		mailbox:     make(chan func()),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		status:      StatusSetup,
		budget:      NewBudgetTracker(),
		subscribers: make(map[int]chan State),
	}
	s.publish()
	go s.run()
	return s
}

// ID returns the identifier given in SchedulerOptions.
func (s *Scheduler) ID() string { return s.id }

// =============================================================================
// Actor loop
// =============================================================================

func (s *Scheduler) run() {
	defer s.shutdown()
	for {
		var tickC <-chan time.Time
		if s.ticker != nil {
			tickC = s.ticker.C
		}
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.mailbox:
			fn()
		case <-tickC:
			s.tick()
		}
	}
}

func (s *Scheduler) shutdown() {
	s.stopTicker()
	if s.turnSpan != nil {
		s.turnSpan.SetStatus(codes.Error, "torn down")
		s.turnSpan.End()
		s.turnSpan = nil
	}
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.logger.Debug("scheduler torn down")
	close(s.done)
}

// call 在 actor 中同步执行 fn 并返回其结果。
func (s *Scheduler) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.mailbox <- func() { reply <- fn() }:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// post 投递异步回调；调度器已关闭时丢弃。
func (s *Scheduler) post(fn func()) {
	select {
	case s.mailbox <- fn:
	case <-s.ctx.Done():
	}
}

// Done is closed once the actor goroutine has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Teardown cancels the scheduler context, clears the timer and waits for the
// actor to exit. In-flight provider calls observe the cancellation. Safe to
// call more than once.
func (s *Scheduler) Teardown() {
	s.cancel()
	<-s.done
}

// =============================================================================
// Transitions
// =============================================================================

// Initialize installs cfg and moves Setup → Running. The first tick fires
// immediately. cfg must already have passed ValidateConfig.
func (s *Scheduler) Initialize(ctx context.Context, cfg ConversationConfig) error {
	return s.call(ctx, func() error {
		if s.status != StatusSetup {
			return ErrInvalidTransition{From: s.status, To: StatusRunning}
		}
		s.cfg = cfg.clone()
		s.hasConfig = true
		s.transcript = NewTranscript(NewSystemRecord(announcement(s.cfg)))
		s.budget.Initialize(s.cfg.AgentNames(), s.cfg.MaxTurnsPerAgent)
		s.setStatus(StatusRunning)
		s.logger.Info("conversation started",
			zap.String("topic", s.cfg.Topic),
			zap.Strings("agents", s.cfg.AgentNames()),
			zap.Int("max_turns_per_agent", s.cfg.MaxTurnsPerAgent))
		s.publish()
		s.tick()
		return nil
	})
}

func announcement(cfg ConversationConfig) string {
	return fmt.Sprintf("Conversation started. Topic: %s. Participants: %s.",
		cfg.Topic, strings.Join(cfg.AgentNames(), ", "))
}

// Pause moves Running → Paused and stops the timer. A turn already in
// flight still completes and is appended.
func (s *Scheduler) Pause(ctx context.Context) error {
	return s.call(ctx, func() error { return s.pause() })
}

func (s *Scheduler) pause() error {
	if s.status != StatusRunning {
		return ErrInvalidTransition{From: s.status, To: StatusPaused}
	}
	s.setStatus(StatusPaused)
	s.publish()
	return nil
}

// Resume moves Paused → Running. With a budget configured every count is
// restored and a system record announces it. The next turn waits one period.
func (s *Scheduler) Resume(ctx context.Context) error {
	return s.call(ctx, func() error { return s.resume() })
}

func (s *Scheduler) resume() error {
	if s.status != StatusPaused {
		return ErrInvalidTransition{From: s.status, To: StatusRunning}
	}
	if s.budget.Enabled() {
		s.budget.Reset()
		s.append(NewSystemRecord(fmt.Sprintf(
			"Turn budgets reset. Each agent may speak %d more time(s).", s.budget.Max())))
	}
	s.setStatus(StatusRunning)
	s.publish()
	return nil
}

// Stop moves Running or Paused → Stopped. Stopping twice is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.call(ctx, func() error {
		if s.status == StatusStopped {
			return nil
		}
		if !CanTransition(s.status, StatusStopped) {
			return ErrInvalidTransition{From: s.status, To: StatusStopped}
		}
		s.setStatus(StatusStopped)
		s.publish()
		return nil
	})
}

// setStatus 切换状态并维护定时器：仅 Running 时存在 ticker。
func (s *Scheduler) setStatus(to Status) {
	from := s.status
	s.status = to
	if to == StatusRunning {
		s.startTicker()
	} else {
		s.stopTicker()
	}
	s.observer.ObserveTransition(string(from), string(to))
	s.logger.Info("status changed", zap.String("from", string(from)), zap.String("to", string(to)))
}

func (s *Scheduler) startTicker() {
	s.stopTicker()
	if s.tickInterval > 0 {
		s.ticker = time.NewTicker(s.tickInterval)
	}
}

func (s *Scheduler) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// =============================================================================
// User input
// =============================================================================

// SubmitUserMessage appends a user record. Allowed while Running or Paused.
func (s *Scheduler) SubmitUserMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	return s.call(ctx, func() error { return s.appendUser(text) })
}

func (s *Scheduler) appendUser(text string) error {
	switch s.status {
	case StatusSetup:
		return ErrNotStarted
	case StatusStopped:
		return ErrStopped
	}
	s.append(NewUserRecord(text))
	s.publish()
	return nil
}

// SubmitCommand executes text if it is a recognized command. handled is
// false for anything else, and nothing is stored.
func (s *Scheduler) SubmitCommand(ctx context.Context, text string) (bool, error) {
	cmd, ok := ParseCommand(s.prefix, text)
	if !ok {
		return false, nil
	}
	return true, s.call(ctx, func() error { return s.runCommand(cmd) })
}

func (s *Scheduler) runCommand(cmd Command) error {
	s.logger.Debug("command received", zap.String("command", string(cmd)))
	switch cmd {
	case CommandPause:
		return s.pause()
	case CommandResume:
		return s.resume()
	}
	return nil
}

// SubmitInput intercepts commands first and stores everything else as a
// user message. Recognized commands are never stored.
func (s *Scheduler) SubmitInput(ctx context.Context, text string) (bool, error) {
	if handled, err := s.SubmitCommand(ctx, text); handled {
		return true, err
	}
	return false, s.SubmitUserMessage(ctx, text)
}

// =============================================================================
// Turn generation
// =============================================================================

// Tick triggers one turn outside the timer. started is false when the tick
// was a no-op: not Running, or a turn already in flight.
func (s *Scheduler) Tick(ctx context.Context) (started bool, err error) {
	err = s.call(ctx, func() error {
		if s.status != StatusRunning {
			s.observer.ObserveTick(TickSkipped)
			return nil
		}
		started = s.tick()
		return nil
	})
	return started, err
}

// tick 执行轮次算法的同步部分，选人在后台 goroutine 中完成。
func (s *Scheduler) tick() bool {
	if !s.hasConfig || s.status != StatusRunning || s.inFlight {
		s.observer.ObserveTick(TickSkipped)
		return false
	}
	s.inFlight = true
	s.turnStart = time.Now()
	s.turnCtx, s.turnSpan = s.tracer.Start(s.ctx, "conversation.tick",
		trace.WithAttributes(attribute.String("conversation.id", s.id)))
	s.publish()

	ctx := s.turnCtx
	req := SelectionRequest{Topic: s.cfg.Topic, Roster: s.cfg.Agents, Transcript: s.transcript}
	go func() {
		name, err := s.selector.SelectNext(ctx, req)
		s.post(func() { s.onSelected(name, err) })
	}()
	return true
}

func (s *Scheduler) onSelected(name string, err error) {
	if err != nil {
		s.logger.Warn("speaker selection failed", zap.Error(err))
		s.finishTurn(TickNoSpeaker, err)
		return
	}

	agent, ok := resolveSpeaker(name, s.cfg.Agents)
	if !ok {
		agent = s.cfg.Agents[0]
		s.logger.Warn("selector returned unknown speaker, falling back to first agent",
			zap.String("selected", name), zap.String("fallback", agent.Name))
	}
	s.turnSpan.SetAttributes(attribute.String("agent.name", agent.Name),
		attribute.String("agent.provider", string(agent.Provider)))

	if remaining, tracked := s.budget.Remaining(agent.Name); tracked && remaining == 0 {
		if s.budget.AllExhausted() && s.status == StatusRunning {
			s.setStatus(StatusPaused)
			s.append(NewSystemRecord(
				"Every agent has used its turn budget. The conversation is paused; resume to continue."))
			s.logger.Info("all turn budgets exhausted, auto-paused")
			s.finishTurn(TickAutoPaused, nil)
			return
		}
		s.logger.Debug("selected agent has no turns left", zap.String("agent", agent.Name))
		s.finishTurn(TickExhaustedSkip, nil)
		return
	}

	ctx := s.turnCtx
	req := GenerationRequest{
		Agent:       agent,
		Transcript:  s.transcript,
		Topic:       s.cfg.Topic,
		Instruction: s.cfg.Instruction,
		Credentials: s.cfg.Credentials,
	}
	go func() {
		text, err := s.generator.Generate(ctx, req)
		s.post(func() { s.onGenerated(agent, text, err) })
	}()
}

func (s *Scheduler) onGenerated(agent Agent, text string, err error) {
	latency := time.Since(s.turnStart)
	if err == nil && strings.TrimSpace(text) == "" {
		err = &GenerationError{Agent: agent.Name, Provider: agent.Provider,
			Cause: CauseMalformedResponse, Message: "empty reply"}
	}

	if err != nil {
		ge := ClassifyGenerationError(agent, err)
		s.append(NewSystemRecord(ge.Error()))
		s.observer.ObserveTurn(agent.Name, string(agent.Provider), string(ge.Cause), latency)
		s.logger.Warn("turn failed",
			zap.String("agent", agent.Name),
			zap.String("cause", string(ge.Cause)),
			zap.Duration("latency", latency))
		s.finishTurn(TickFailed, err)
		return
	}

	if s.status == StatusRunning {
		s.budget.Consume(agent.Name)
	}
	s.append(NewAgentRecord(agent.Name, text))
	s.observer.ObserveTurn(agent.Name, string(agent.Provider), "ok", latency)
	s.logger.Debug("turn completed",
		zap.String("agent", agent.Name),
		zap.Duration("latency", latency),
		zap.String("status", string(s.status)))
	s.finishTurn(TickGenerated, nil)
}

func (s *Scheduler) finishTurn(outcome string, err error) {
	s.inFlight = false
	s.observer.ObserveTick(outcome)
	if s.turnSpan != nil {
		s.turnSpan.SetAttributes(attribute.String("tick.outcome", outcome))
		if err != nil {
			s.turnSpan.RecordError(err)
			s.turnSpan.SetStatus(codes.Error, err.Error())
		}
		s.turnSpan.End()
		s.turnSpan = nil
	}
	s.turnCtx = nil
	s.publish()
}

// =============================================================================
// State
// =============================================================================

func (s *Scheduler) append(rec TurnRecord) {
	s.transcript = s.transcript.Append(rec)
}

func (s *Scheduler) buildState() State {
	st := State{
		Status:       s.status,
		Transcript:   s.transcript,
		TurnInFlight: s.inFlight,
	}
	if s.hasConfig {
		st.Topic = s.cfg.Topic
		st.Roster = append([]Agent(nil), s.cfg.Agents...)
		st.Budgets = s.budget.Snapshot()
		st.MaxTurnsPerAgent = s.cfg.MaxTurnsPerAgent
	}
	return st
}

// publish 更新快照并以 latest-wins 方式推送给订阅者。
func (s *Scheduler) publish() {
	st := s.buildState()
	s.snapshot.Store(&st)
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// State returns the latest snapshot. It keeps working after Teardown.
func (s *Scheduler) State() State {
	return *s.snapshot.Load()
}

// Subscribe returns a channel that receives the current state and then a
// snapshot after every mutation. A slow reader only sees the latest one.
// The channel is closed by cancel or on teardown.
func (s *Scheduler) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	var id int
	err := s.call(context.Background(), func() error {
		id = s.nextSubID
		s.nextSubID++
		s.subscribers[id] = ch
		ch <- s.buildState()
		return nil
	})
	if err != nil {
		ch <- s.State()
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			_ = s.call(context.Background(), func() error {
				if c, ok := s.subscribers[id]; ok {
					delete(s.subscribers, id)
					close(c)
				}
				return nil
			})
		})
	}
}
