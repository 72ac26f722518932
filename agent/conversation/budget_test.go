package conversation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBudgetTracker_Disabled(t *testing.T) {
	b := NewBudgetTracker()
	b.Initialize([]string{"A", "B"}, 0)

	assert.False(t, b.Enabled())
	_, ok := b.Remaining("A")
	assert.False(t, ok)
	b.Consume("A")
	assert.False(t, b.AllExhausted())
	assert.Nil(t, b.Snapshot())
}

func TestBudgetTracker_ConsumeAndReset(t *testing.T) {
	b := NewBudgetTracker()
	b.Initialize([]string{"A", "B"}, 2)

	b.Consume("A")
	b.Consume("A")
	b.Consume("A")
	b.Consume("ghost")

	n, ok := b.Remaining("A")
	assert.True(t, ok)
	assert.Equal(t, 0, n)
	n, _ = b.Remaining("B")
	assert.Equal(t, 2, n)
	assert.False(t, b.AllExhausted())

	b.Consume("B")
	b.Consume("B")
	assert.True(t, b.AllExhausted())

	b.Reset()
	assert.Equal(t, map[string]int{"A": 2, "B": 2}, b.Snapshot())
	assert.Equal(t, 2, b.Max())

	snap := b.Snapshot()
	snap["A"] = 99
	n, _ = b.Remaining("A")
	assert.Equal(t, 2, n)
}

func TestBudgetTracker_Reinitialize(t *testing.T) {
	b := NewBudgetTracker()
	b.Initialize([]string{"A", "B"}, 1)
	b.Initialize([]string{"A", "B"}, 0)
	assert.False(t, b.Enabled())
	assert.False(t, b.AllExhausted())
}

// 任意 consume/reset 序列下：计数在 [0, max] 内，consume 只减不增，reset 恢复到 max。
func TestProperty_BudgetMonotonic(t *testing.T) {
	names := []string{"A", "B", "C"}
	rapid.Check(t, func(rt *rapid.T) {
		max := rapid.IntRange(1, 5).Draw(rt, "max")
		b := NewBudgetTracker()
		b.Initialize(names, max)

		ops := rapid.SliceOfN(rapid.IntRange(0, 3), 0, 60).Draw(rt, "ops")
		for _, op := range ops {
			before := b.Snapshot()
			if op == 3 {
				b.Reset()
				for _, n := range names {
					if got, _ := b.Remaining(n); got != max {
						rt.Fatalf("reset: %s = %d, want %d", n, got, max)
					}
				}
				continue
			}

			target := names[op]
			b.Consume(target)
			for _, n := range names {
				got, _ := b.Remaining(n)
				if got < 0 || got > max {
					rt.Fatalf("%s out of range: %d", n, got)
				}
				want := before[n]
				if n == target && want > 0 {
					want--
				}
				if got != want {
					rt.Fatalf("consume %s: %s = %d, want %d", target, n, got, want)
				}
			}
		}

		all := true
		for _, v := range b.Snapshot() {
			all = all && v == 0
		}
		if b.AllExhausted() != all {
			rt.Fatalf("AllExhausted = %v, counts %v", b.AllExhausted(), b.Snapshot())
		}
	})
}

func TestProperty_BudgetExhaustsAfterMaxTurns(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("every agent speaking max times exhausts the budget", prop.ForAll(
		func(max, agents int) bool {
			names := make([]string, agents)
			for i := range names {
				names[i] = string(rune('A' + i))
			}
			b := NewBudgetTracker()
			b.Initialize(names, max)
			for range max {
				if b.AllExhausted() {
					return false
				}
				for _, n := range names {
					b.Consume(n)
				}
			}
			return b.AllExhausted()
		},
		gen.IntRange(1, 8),
		gen.IntRange(MinAgents, MaxAgents),
	))

	properties.TestingRun(t)
}
