package conversation

import "strings"

// DefaultCommandPrefix marks in-band commands in user input.
const DefaultCommandPrefix = "/"

// Command 是用户输入中可识别的控制指令。
type Command string

const (
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
)

// ParseCommand recognizes prefix+"pause" and prefix+"resume", trimmed and
// case-insensitive. Anything else, including unknown prefixed words, is not
// a command.
func ParseCommand(prefix, text string) (Command, bool) {
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}
	switch cmd := Command(strings.ToLower(strings.TrimSpace(text[len(prefix):]))); cmd {
	case CommandPause, CommandResume:
		return cmd, true
	default:
		return "", false
	}
}
