package driver

// State represents the lifecycle of a session's device handle.
type State string

const (
	// StateDisconnected means that no device handle is held. Nothing but
	// connecting or disconnecting is allowed.
	StateDisconnected State = "disconnected"
	// StateConnected means that a backend opened the device and stream
	// properties were requested, but no frame has been read yet.
	StateConnected State = "connected"
	// StateCapturing means that at least one frame was read successfully.
	StateCapturing State = "capturing"
)

// Update updates current state, s, to next. If f fails to execute,
// s will stay unchanged. Otherwise, s will be updated to next
func (s *State) Update(next State, f func() error) error {
	checks := map[State]func() error{
		StateConnected:    s.toConnected,
		StateDisconnected: s.toDisconnected,
		StateCapturing:    s.toCapturing,
	}

	if check, ok := checks[next]; ok {
		if err := check(); err != nil {
			return err
		}
	}

	err := f()
	if err == nil {
		*s = next
	}
	return err
}

func (s *State) current() State {
	if *s == "" {
		return StateDisconnected
	}
	return *s
}

func (s *State) toConnected() error {
	if s.current() != StateDisconnected {
		return ErrAlreadyConnected
	}
	return nil
}

func (s *State) toDisconnected() error {
	return nil
}

func (s *State) toCapturing() error {
	if s.current() == StateDisconnected {
		return ErrNotConnected
	}
	return nil
}
