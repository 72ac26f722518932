package conversation

import (
	"fmt"
	"slices"
)

// Status 定义会话生命周期状态
type Status string

const (
	StatusSetup   Status = "setup"   // config not yet supplied
	StatusRunning Status = "running" // autonomous loop active
	StatusPaused  Status = "paused"  // loop halted, resumable
	StatusStopped Status = "stopped" // terminal
)

// validTransitions 定义合法的状态转换
var validTransitions = map[Status][]Status{
	StatusSetup:   {StatusRunning},
	StatusRunning: {StatusPaused, StatusStopped},
	StatusPaused:  {StatusRunning, StatusStopped},
	StatusStopped: {},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid conversation transition: %s -> %s", e.From, e.To)
}

// State 是提供给展示层的只读快照。
// Budgets 仅在配置了轮次预算时非 nil。
type State struct {
	Status           Status         `json:"status"`
	Topic            string         `json:"topic"`
	Roster           []Agent        `json:"roster"`
	Transcript       Transcript     `json:"transcript"`
	Budgets          map[string]int `json:"budgets,omitempty"`
	MaxTurnsPerAgent int            `json:"max_turns_per_agent,omitempty"`
	TurnInFlight     bool           `json:"turn_in_flight"`
}
