package session

import "strings"

// Command is one operator instruction at the prompt.
type Command int

const (
	CmdUnknown Command = iota
	CmdRecord
	CmdNext
	CmdPrev
	CmdQuit
)

// ParseCommand maps an operator token to a command. Tokens are
// case-insensitive; anything unrecognized is CmdUnknown.
func ParseCommand(s string) Command {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "g":
		return CmdRecord
	case "w":
		return CmdNext
	case "b":
		return CmdPrev
	case "q":
		return CmdQuit
	default:
		return CmdUnknown
	}
}
