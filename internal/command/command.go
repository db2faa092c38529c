// Package command parses a single terminal input line into a Command.
// It performs no FSM checks; those belong to the fsm package.
package command

import (
	"fmt"
	"strings"
)

// Kind is the closed set of commands a user line can produce.
type Kind int

const (
	Auth Kind = iota
	Join
	Rename
	Help
	Message
)

// Command is the parsed form of one input line.
type Command struct {
	Kind Kind

	Username    string // Auth
	Secret      string // Auth
	DisplayName string // Auth, Rename
	ChannelID   string // Join
	Content     string // Message
}

// HelpText is printed for both the /help command and the -h CLI flag.
const HelpText = `Supported local commands:
  /auth <username> <secret> <displayName>   authenticate with the server
  /join <channelId>                         join a channel
  /rename <displayName>                     change your locally-displayed name
  /help                                     show this message
  <anything else>                           send a chat message`

// Parse parses one raw input line (no trailing newline). The empty line
// produces (nil, nil, false): nothing to send, nothing to report.
//
// Return value: (cmd, err, isHelp). When isHelp is true, cmd and err are
// both nil and the caller should print HelpText. When err is non-nil, the
// line was malformed and the caller should render it as a user-visible
// error without transmitting anything.
func Parse(line string) (cmd *Command, err error, isHelp bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, nil, false
	}

	if !strings.HasPrefix(trimmed, "/") {
		return &Command{Kind: Message, Content: trimmed}, nil, false
	}

	fields := strings.Fields(trimmed)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "/auth":
		if len(args) != 3 {
			return nil, fmt.Errorf("/auth requires exactly 3 arguments: <username> <secret> <displayName>"), false
		}
		return &Command{Kind: Auth, Username: args[0], Secret: args[1], DisplayName: args[2]}, nil, false
	case "/join":
		if len(args) != 1 {
			return nil, fmt.Errorf("/join requires exactly 1 argument: <channelId>"), false
		}
		return &Command{Kind: Join, ChannelID: args[0]}, nil, false
	case "/rename":
		if len(args) != 1 {
			return nil, fmt.Errorf("/rename requires exactly 1 argument: <displayName>"), false
		}
		return &Command{Kind: Rename, DisplayName: args[0]}, nil, false
	case "/help":
		if len(args) != 0 {
			return nil, fmt.Errorf("/help takes no arguments"), false
		}
		return nil, nil, true
	default:
		return nil, fmt.Errorf("unknown command %q, type /help for a list of commands", fields[0]), false
	}
}
