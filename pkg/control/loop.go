package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/prop"
	"github.com/focuscam/focuscam/pkg/session"
)

var logger = logging.NewLogger("focuscam/control")

// DefaultMaxConsecutiveFailures is how many failed frame reads in a row end
// the loop.
const DefaultMaxConsecutiveFailures = 10

// ErrTooManyFailures ends the loop when the device stops delivering frames.
var ErrTooManyFailures = errors.New("too many consecutive frame read failures")

// Camera is what the loop drives. *session.Session implements it.
type Camera interface {
	Focuser
	GetFrame() (session.Frame, error)
	Disconnect()
	ID() string
	Backend() string
	State() driver.State
	FocusRange() prop.IntRanged
}

// Status describes the loop after a frame.
type Status struct {
	ID         string         `json:"id"`
	Backend    string         `json:"backend"`
	State      driver.State   `json:"state"`
	Focus      int            `json:"focus"`
	FocusRange prop.IntRanged `json:"focus_range"`
	LastWrite  string         `json:"last_write,omitempty"`
	Frames     uint64         `json:"frames"`
	Failures   int            `json:"consecutive_failures"`
	Updated    time.Time      `json:"updated"`
}

// Sink receives every frame the loop reads. Publish runs on the loop
// goroutine and must not block.
type Sink interface {
	Publish(session.Frame, Status)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(session.Frame, Status)

func (f SinkFunc) Publish(frame session.Frame, status Status) {
	f(frame, status)
}

// Loop is the capture loop. It is the only goroutine touching the camera;
// everything else talks to it through Commands.
type Loop struct {
	Camera   Camera
	Commands <-chan Command
	Sinks    []Sink
	// MaxConsecutiveFailures defaults to DefaultMaxConsecutiveFailures.
	MaxConsecutiveFailures int

	lastWrite string
	failures  int
}

// Run reads and publishes frames until a Quit command, ctx is done or the
// device fails too often. The camera is disconnected on every return path.
// A quit or a cancelled ctx is a clean stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Camera.Disconnect()

	maxFailures := l.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}

	commands := l.Commands
	for {
		select {
		case <-ctx.Done():
			logger.Info("capture loop cancelled")
			return nil
		default:
		}

		var quit bool
		commands, quit = l.drain(commands)
		if quit {
			logger.Info("quit requested")
			return nil
		}

		frame, err := l.Camera.GetFrame()
		if err != nil {
			if !errors.Is(err, session.ErrReadFailed) {
				return err
			}
			l.failures++
			logger.Warnf("frame read failed (%d/%d): %v", l.failures, maxFailures, err)
			if l.failures >= maxFailures {
				return fmt.Errorf("%w: %v", ErrTooManyFailures, err)
			}
			continue
		}
		l.failures = 0

		status := l.status()
		status.Frames = frame.Seq
		for _, s := range l.Sinks {
			s.Publish(frame, status)
		}
	}
}

// drain applies every pending command without blocking. A closed channel
// is replaced by nil so it is not polled again.
func (l *Loop) drain(commands <-chan Command) (<-chan Command, bool) {
	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				return nil, false
			}
			if cmd.Kind == Quit {
				return commands, true
			}
			res, err := Apply(l.Camera, cmd)
			if err != nil {
				logger.Errorf("%s: %v", cmd, err)
				continue
			}
			l.lastWrite = fmt.Sprintf("%s: %s", cmd, res)
			logger.Infof("focus %d (%s)", l.Camera.LastFocus(), res)
		default:
			return commands, false
		}
	}
}

func (l *Loop) status() Status {
	return Status{
		ID:         l.Camera.ID(),
		Backend:    l.Camera.Backend(),
		State:      l.Camera.State(),
		Focus:      l.Camera.LastFocus(),
		FocusRange: l.Camera.FocusRange(),
		LastWrite:  l.lastWrite,
		Failures:   l.failures,
		Updated:    time.Now(),
	}
}
