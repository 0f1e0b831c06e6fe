package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Command is one of the fixed control commands understood by the controller.
type Command string

const (
	SpeedUp  Command = "SPEED_UP"
	SlowDown Command = "SLOW_DOWN"
	StopNow  Command = "STOPNOW"
	StartNow Command = "STARTNOW"
)

var ErrUnknownCommand = errors.New("unknown command")

var commands = []Command{SpeedUp, SlowDown, StopNow, StartNow}

// Commands lists every supported command in button order.
func Commands() []Command {
	out := make([]Command, len(commands))
	copy(out, commands)

	return out
}

func (c Command) Valid() bool {
	for _, known := range commands {
		if c == known {
			return true
		}
	}

	return false
}

func ParseCommand(name string) (Command, error) {
	cmd := Command(strings.ToUpper(strings.TrimSpace(name)))
	if !cmd.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	return cmd, nil
}

// EncodeCommand renders the wire form without the trailing newline.
func EncodeCommand(cmd Command) string {
	return "CMD " + string(cmd)
}

// EncodeAdmin renders the admin handshake line.
func EncodeAdmin(token string) string {
	return "ADMIN token=" + token
}
