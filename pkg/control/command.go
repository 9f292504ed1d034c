// Package control turns key presses and remote requests into focus commands
// and runs the capture loop that applies them to a session.
package control

import (
	"fmt"

	"github.com/focuscam/focuscam/pkg/session"
)

// Kind is the kind of a Command.
type Kind int

const (
	// FocusDelta moves the focus by Value.
	FocusDelta Kind = iota
	// FocusSet moves the focus to Value.
	FocusSet
	// FocusReset moves the focus to the reset position carried in Value.
	FocusReset
	// Quit ends the capture loop.
	Quit
)

func (k Kind) String() string {
	switch k {
	case FocusDelta:
		return "focus_delta"
	case FocusSet:
		return "focus_set"
	case FocusReset:
		return "focus_reset"
	case Quit:
		return "quit"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Command struct {
	Kind  Kind
	Value int
}

func Delta(d int) Command { return Command{Kind: FocusDelta, Value: d} }
func Set(v int) Command   { return Command{Kind: FocusSet, Value: v} }
func Reset(v int) Command { return Command{Kind: FocusReset, Value: v} }

// QuitCommand ends the capture loop.
var QuitCommand = Command{Kind: Quit}

func (c Command) String() string {
	switch c.Kind {
	case Quit:
		return c.Kind.String()
	case FocusDelta:
		return fmt.Sprintf("%s(%+d)", c.Kind, c.Value)
	}
	return fmt.Sprintf("%s(%d)", c.Kind, c.Value)
}

// Focuser is the part of a session commands act on.
type Focuser interface {
	SetFocus(v int) (session.WriteResult, error)
	LastFocus() int
}

// Apply runs a focus command on f. The session clamps, so deltas past the
// ends of the range saturate. Quit is not a focus command and is ignored.
func Apply(f Focuser, cmd Command) (session.WriteResult, error) {
	var target int
	switch cmd.Kind {
	case FocusDelta:
		target = f.LastFocus() + cmd.Value
	case FocusSet, FocusReset:
		target = cmd.Value
	default:
		return session.WriteRejected, fmt.Errorf("%s is not a focus command", cmd)
	}
	return f.SetFocus(target)
}
