package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"autoshutdown/internal/scheduler"
	"autoshutdown/internal/types"
)

// Verb identifies a text command.
type Verb int

const (
	VerbEnableTimer Verb = iota + 1
	VerbSetTimer
	VerbEnableDelay
	VerbSetDelay
	VerbStatus
	VerbHelp
)

// Command is a parsed text command.
type Command struct {
	Verb    Verb
	Enabled bool
	Arg     string
}

// Usage lists the text grammar.
const Usage = `commands:
  sdtimer enable <true|false>   turn the daily shutdown timer on or off
  sdtimer set <HH:MM:SS>        set the daily shutdown time
  sddelay enable <true|false>   turn the one-shot delay on or off
  sddelay set <HH:MM:SS>        set the one-shot delay and restart it
  sdstatus                      show the countdown
  help                          show this text`

// Parse reads one line of the text grammar. Blank input is an error.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, invalidCommand("empty command")
	}

	switch strings.ToLower(fields[0]) {
	case "sdstatus":
		if len(fields) != 1 {
			return Command{}, invalidCommand("sdstatus takes no arguments")
		}
		return Command{Verb: VerbStatus}, nil
	case "help", "?":
		return Command{Verb: VerbHelp}, nil
	case "sdtimer":
		return parseTimerCommand(fields, VerbEnableTimer, VerbSetTimer)
	case "sddelay":
		return parseTimerCommand(fields, VerbEnableDelay, VerbSetDelay)
	default:
		return Command{}, invalidCommand(fmt.Sprintf("unknown command %q", fields[0]))
	}
}

func parseTimerCommand(fields []string, enableVerb, setVerb Verb) (Command, error) {
	if len(fields) != 3 {
		return Command{}, invalidCommand(fmt.Sprintf("usage: %s enable <true|false> | %s set <HH:MM:SS>", fields[0], fields[0]))
	}

	switch strings.ToLower(fields[1]) {
	case "enable":
		enabled, err := strconv.ParseBool(fields[2])
		if err != nil {
			return Command{}, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidBool,
				fmt.Sprintf("invalid boolean %q", fields[2]),
				err,
				map[string]any{"value": fields[2]},
			)
		}
		return Command{Verb: enableVerb, Enabled: enabled}, nil
	case "set":
		return Command{Verb: setVerb, Arg: fields[2]}, nil
	default:
		return Command{}, invalidCommand(fmt.Sprintf("unknown subcommand %q", fields[1]))
	}
}

func invalidCommand(msg string) error {
	return types.NewAppError(types.ErrCodeValidationCommand, msg, nil)
}

// Execute runs a parsed command. Status and help render a text Result.
func (s *Service) Execute(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Verb {
	case VerbEnableTimer:
		return s.EnableTimer(ctx, cmd.Enabled)
	case VerbSetTimer:
		return s.SetTimer(ctx, cmd.Arg)
	case VerbEnableDelay:
		return s.EnableDelay(ctx, cmd.Enabled)
	case VerbSetDelay:
		return s.SetDelay(ctx, cmd.Arg)
	case VerbStatus:
		st, err := s.Status(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{OK: true, Message: FormatStatus(st)}, nil
	case VerbHelp:
		return Result{OK: true, Message: Usage}, nil
	default:
		return Result{}, invalidCommand("unknown command")
	}
}

// FormatStatus renders a status snapshot for a terminal.
func FormatStatus(st scheduler.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\n", st.State)
	fmt.Fprintf(&b, "timer: %s at %s", onOff(st.TimerEnabled), st.Timer)
	if st.NextTimer != nil {
		fmt.Fprintf(&b, " (next %s)", st.NextTimer.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "\ndelay: %s for %s\n", onOff(st.DelayEnabled), st.Delay)
	if st.Deadline == nil {
		b.WriteString("no shutdown scheduled")
		return b.String()
	}
	fmt.Fprintf(&b, "shutdown at %s, in %s", st.Deadline.Format("2006-01-02 15:04:05"), st.Remaining)
	if len(st.FiredThresholds) > 0 {
		fmt.Fprintf(&b, "\nwarned: %s", strings.Join(st.FiredThresholds, ", "))
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
