package conversation

// BudgetTracker 记录每个 Agent 的剩余轮次。
// max <= 0 时不追踪，所有 Agent 视为无限。
// 由调度器 goroutine 独占，不支持并发访问。
type BudgetTracker struct {
	max       int
	remaining map[string]int
}

// NewBudgetTracker returns a disabled tracker.
func NewBudgetTracker() *BudgetTracker {
	return &BudgetTracker{}
}

// Initialize sets every named agent to max, or disables tracking when max <= 0.
func (b *BudgetTracker) Initialize(names []string, max int) {
	if max <= 0 {
		b.max = 0
		b.remaining = nil
		return
	}
	b.max = max
	b.remaining = make(map[string]int, len(names))
	for _, n := range names {
		b.remaining[n] = max
	}
}

// Enabled reports whether tracking is on.
func (b *BudgetTracker) Enabled() bool { return b.max > 0 }

// Max returns the configured per-agent maximum (0 when disabled).
func (b *BudgetTracker) Max() int { return b.max }

// Remaining returns the count for name. ok is false when tracking is
// disabled, meaning unbounded. Unknown names report 0.
func (b *BudgetTracker) Remaining(name string) (n int, ok bool) {
	if !b.Enabled() {
		return 0, false
	}
	return b.remaining[name], true
}

// Consume decrements name's count when tracking is on and the count is
// positive. Unknown names are ignored.
func (b *BudgetTracker) Consume(name string) {
	if !b.Enabled() {
		return
	}
	if n, ok := b.remaining[name]; ok && n > 0 {
		b.remaining[name] = n - 1
	}
}

// AllExhausted reports whether tracking is on and every count is zero.
func (b *BudgetTracker) AllExhausted() bool {
	if !b.Enabled() {
		return false
	}
	for _, n := range b.remaining {
		if n > 0 {
			return false
		}
	}
	return true
}

// Reset restores every tracked count to the maximum.
func (b *BudgetTracker) Reset() {
	for name := range b.remaining {
		b.remaining[name] = b.max
	}
}

// Snapshot returns a copy of the counts, or nil when disabled.
func (b *BudgetTracker) Snapshot() map[string]int {
	if !b.Enabled() {
		return nil
	}
	out := make(map[string]int, len(b.remaining))
	for k, v := range b.remaining {
		out[k] = v
	}
	return out
}
