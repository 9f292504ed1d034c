package control

const (
	keyCtrlC  = 0x03
	keyEscape = 0x1b
)

// KeyHelp describes the key bindings.
const KeyHelp = "A/D: focus -/+  S: reset  Q: quit"

// Keymap binds keys to focus commands.
type Keymap struct {
	// Step is the focus change of one A or D press.
	Step int
	// ResetFocus is where S moves the focus.
	ResetFocus int
}

// DefaultKeymap is a step of 5 and a reset to 100.
var DefaultKeymap = Keymap{Step: 5, ResetFocus: 100}

// Command maps a key to its command. Keys are case insensitive; Ctrl-C and
// Escape quit like Q.
func (m Keymap) Command(key byte) (Command, bool) {
	switch key {
	case 'a', 'A':
		return Delta(-m.Step), true
	case 'd', 'D':
		return Delta(m.Step), true
	case 's', 'S':
		return Reset(m.ResetFocus), true
	case 'q', 'Q', keyCtrlC, keyEscape:
		return QuitCommand, true
	}
	return Command{}, false
}
