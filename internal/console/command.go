package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CommandKind selects what a typed command does
type CommandKind int

const (
	// CommandOn switches one actuator on
	CommandOn CommandKind = iota
	// CommandOff switches one actuator off
	CommandOff
	// CommandToggle flips one actuator's last known state
	CommandToggle
	// CommandAllOff switches every actuator of every node off
	CommandAllOff
	// CommandStatus prints the node table
	CommandStatus
	// CommandHelp prints the command list
	CommandHelp
	// CommandQuit leaves the panel
	CommandQuit
)

// Command is one parsed input line
type Command struct {
	Kind       CommandKind
	NodeID     int
	ActuatorID int
}

// ErrEmptyCommand is returned for blank input
var ErrEmptyCommand = errors.New("empty command")

const helpText = `commands:
  on <node> <actuator>      switch an actuator on
  off <node> <actuator>     switch an actuator off
  toggle <node> <actuator>  flip an actuator's last known state
  alloff                    switch every actuator off
  status                    show all nodes
  help                      show this text
  quit                      leave the panel`

// ParseCommand parses one input line
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}

	var kind CommandKind
	switch strings.ToLower(fields[0]) {
	case "on":
		kind = CommandOn
	case "off":
		kind = CommandOff
	case "toggle", "t":
		kind = CommandToggle
	case "alloff", "all-off":
		return noArgs(CommandAllOff, fields)
	case "status", "ls":
		return noArgs(CommandStatus, fields)
	case "help", "?":
		return noArgs(CommandHelp, fields)
	case "quit", "exit", "q":
		return noArgs(CommandQuit, fields)
	default:
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}

	if len(fields) != 3 {
		return Command{}, fmt.Errorf("%s expects <node> <actuator>", fields[0])
	}
	nodeID, err := strconv.Atoi(fields[1])
	if err != nil {
		return Command{}, fmt.Errorf("invalid node id %q", fields[1])
	}
	actuatorID, err := strconv.Atoi(fields[2])
	if err != nil {
		return Command{}, fmt.Errorf("invalid actuator id %q", fields[2])
	}
	return Command{Kind: kind, NodeID: nodeID, ActuatorID: actuatorID}, nil
}

func noArgs(kind CommandKind, fields []string) (Command, error) {
	if len(fields) != 1 {
		return Command{}, fmt.Errorf("%s takes no arguments", fields[0])
	}
	return Command{Kind: kind}, nil
}

// Commander sends control-panel requests to the relay
type Commander interface {
	SendActuatorChange(nodeID, actuatorID int, on bool) error
	SendTurnOffAll() error
}

// Run reads commands from in until quit, end of input, a lost relay
// connection or ctx being done.
func (p *Panel) Run(ctx context.Context, in io.Reader, cmd Commander) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.lost:
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := p.Execute(line, cmd)
			if err != nil && !errors.Is(err, ErrEmptyCommand) {
				p.println(p.alertStyle.Render(err.Error()))
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute runs one input line. It reports whether the panel should quit.
func (p *Panel) Execute(line string, cmd Commander) (bool, error) {
	c, err := ParseCommand(line)
	if err != nil {
		return false, err
	}

	switch c.Kind {
	case CommandOn, CommandOff:
		return false, cmd.SendActuatorChange(c.NodeID, c.ActuatorID, c.Kind == CommandOn)
	case CommandToggle:
		on, _ := p.ActuatorState(c.NodeID, c.ActuatorID)
		return false, cmd.SendActuatorChange(c.NodeID, c.ActuatorID, !on)
	case CommandAllOff:
		return false, cmd.SendTurnOffAll()
	case CommandStatus:
		p.println(p.Render())
	case CommandHelp:
		p.println(helpText)
	case CommandQuit:
		return true, nil
	}
	return false, nil
}
