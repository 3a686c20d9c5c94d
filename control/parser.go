package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/watthouse/agent/selector"
)

// Verb is a per-element control-plane action.
type Verb int

const (
	VerbPause Verb = iota
	VerbResume
	VerbStop
	VerbSetPeriod
	VerbTriggerNow
)

func (v Verb) String() string {
	switch v {
	case VerbPause:
		return "pause"
	case VerbResume:
		return "resume"
	case VerbStop:
		return "stop"
	case VerbSetPeriod:
		return "set-period"
	case VerbTriggerNow:
		return "trigger-now"
	default:
		return "unknown"
	}
}

var verbAliases = map[string]Verb{
	"pause": VerbPause, "disable": VerbPause,
	"resume": VerbResume, "enable": VerbResume,
	"stop":             VerbStop,
	"set-period":       VerbSetPeriod,
	"set-poll-interval": VerbSetPeriod,
	"trigger-now":      VerbTriggerNow,
}

// CommandKind discriminates the top-level forms the text protocol
// accepts.
type CommandKind int

const (
	CmdShutdown CommandKind = iota
	CmdConfigure
)

// Command is a parsed line of the text control protocol.
type Command struct {
	Kind     CommandKind
	Pattern  selector.Pattern
	Verb     Verb
	Duration time.Duration
}

// Parse reads one line of the text protocol:
//
//	shutdown | stop
//	control <pattern> <verb> [args]
//
// Duration arguments use Go's duration syntax (10ms, 2s, 500us, ...),
// which is a superset of the literals the protocol promises.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("control: empty command")
	}

	switch fields[0] {
	case "shutdown", "stop":
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("control: %q takes no arguments", fields[0])
		}
		return Command{Kind: CmdShutdown}, nil
	case "control":
		return parseControl(fields[1:])
	default:
		return Command{}, fmt.Errorf("control: unknown command %q", fields[0])
	}
}

func parseControl(fields []string) (Command, error) {
	if len(fields) < 2 {
		return Command{}, fmt.Errorf("control: %q requires a pattern and a verb", "control")
	}
	pattern, err := selector.Parse(fields[0])
	if err != nil {
		return Command{}, err
	}
	verb, ok := verbAliases[fields[1]]
	if !ok {
		return Command{}, fmt.Errorf("control: unknown verb %q", fields[1])
	}
	cmd := Command{Kind: CmdConfigure, Pattern: pattern, Verb: verb}

	if verb == VerbSetPeriod {
		if len(fields) != 3 {
			return Command{}, fmt.Errorf("control: %s requires exactly one duration argument", fields[1])
		}
		d, err := time.ParseDuration(fields[2])
		if err != nil {
			return Command{}, fmt.Errorf("control: invalid duration %q: %w", fields[2], err)
		}
		cmd.Duration = d
	} else if len(fields) != 2 {
		return Command{}, fmt.Errorf("control: %s takes no arguments", fields[1])
	}
	return cmd, nil
}
