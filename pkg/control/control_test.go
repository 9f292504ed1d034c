package control

import (
	"context"
	"testing"
	"time"

	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/driver/videotest"
	"github.com/focuscam/focuscam/pkg/retry"
	"github.com/focuscam/focuscam/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCamera(t *testing.T, opts ...videotest.Option) (*session.Session, *videotest.Backend) {
	t.Helper()
	b := videotest.New(append([]videotest.Option{videotest.WithoutPacing()}, opts...)...)

	o := session.DefaultOptions()
	o.Width, o.Height = 320, 240
	o.ConnectRetry = retry.Once
	o.ReadRetry = retry.Once
	s := session.New(o, b)
	require.NoError(t, s.Connect())
	t.Cleanup(s.Disconnect)
	return s, b
}

func TestKeymap(t *testing.T) {
	testCases := map[byte]struct {
		cmd Command
		ok  bool
	}{
		'a':  {Delta(-5), true},
		'A':  {Delta(-5), true},
		'd':  {Delta(5), true},
		'D':  {Delta(5), true},
		's':  {Reset(100), true},
		'S':  {Reset(100), true},
		'q':  {QuitCommand, true},
		'Q':  {QuitCommand, true},
		0x03: {QuitCommand, true},
		0x1b: {QuitCommand, true},
		'x':  {Command{}, false},
		' ':  {Command{}, false},
	}

	for key, c := range testCases {
		cmd, ok := DefaultKeymap.Command(key)
		assert.Equal(t, c.ok, ok, "key %q", key)
		assert.Equal(t, c.cmd, cmd, "key %q", key)
	}

	cmd, _ := Keymap{Step: 20, ResetFocus: 42}.Command('s')
	assert.Equal(t, Reset(42), cmd)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "focus_delta(+5)", Delta(5).String())
	assert.Equal(t, "focus_delta(-5)", Delta(-5).String())
	assert.Equal(t, "focus_set(7)", Set(7).String())
	assert.Equal(t, "focus_reset(100)", Reset(100).String())
	assert.Equal(t, "quit", QuitCommand.String())
}

func TestApply(t *testing.T) {
	s, _ := newCamera(t)

	steps := []struct {
		cmd  Command
		want int
	}{
		{Set(250), 250},
		{Delta(5), 255},
		{Delta(5), 255},
		{Reset(100), 100},
		{Delta(-5), 95},
		{Set(3), 3},
		{Delta(-5), 0},
		{Set(-40), 0},
	}
	for _, step := range steps {
		res, err := Apply(s, step.cmd)
		require.NoError(t, err, step.cmd.String())
		assert.Equal(t, session.WriteApplied, res, step.cmd.String())
		assert.Equal(t, step.want, s.LastFocus(), step.cmd.String())
	}

	_, err := Apply(s, QuitCommand)
	assert.Error(t, err)
}

func TestLoopQuit(t *testing.T) {
	s, b := newCamera(t)
	commands := make(chan Command, 1)

	var seen []uint64
	l := &Loop{
		Camera:   s,
		Commands: commands,
		Sinks: []Sink{SinkFunc(func(f session.Frame, st Status) {
			seen = append(seen, st.Frames)
			if len(seen) == 3 {
				commands <- QuitCommand
			}
		})},
	}

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []uint64{1, 2, 3}, seen)
	assert.Equal(t, driver.StateDisconnected, s.State())
	assert.Zero(t, b.OpenHandles())
}

func TestLoopCancel(t *testing.T) {
	s, b := newCamera(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := 0
	l := &Loop{
		Camera: s,
		Sinks: []Sink{SinkFunc(func(session.Frame, Status) {
			frames++
			cancel()
		})},
	}

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, 1, frames)
	assert.Equal(t, driver.StateDisconnected, s.State())
	assert.Zero(t, b.OpenHandles())
}

func TestLoopTooManyFailures(t *testing.T) {
	s, b := newCamera(t, videotest.WithReadError(driver.ErrReadTimeout))

	l := &Loop{Camera: s, MaxConsecutiveFailures: 3}
	err := l.Run(context.Background())
	assert.ErrorIs(t, err, ErrTooManyFailures)
	assert.Equal(t, driver.StateDisconnected, s.State())
	assert.Zero(t, b.OpenHandles())
}

func TestLoopFailuresReset(t *testing.T) {
	s, b := newCamera(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var failures []int
	l := &Loop{
		Camera:                 s,
		MaxConsecutiveFailures: 3,
		Sinks: []Sink{SinkFunc(func(f session.Frame, st Status) {
			failures = append(failures, st.Failures)
			switch f.Seq {
			case 1, 2:
				// Two failures in a row stay under the limit.
				b.FailReads(0, 2)
			default:
				cancel()
			}
		})},
	}

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, []int{0, 0, 0}, failures)
}

func TestLoopAppliesCommands(t *testing.T) {
	s, _ := newCamera(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	commands := make(chan Command, 3)
	commands <- Delta(5)
	commands <- Delta(5)
	commands <- Set(300)

	var status Status
	l := &Loop{
		Camera:   s,
		Commands: commands,
		Sinks: []Sink{SinkFunc(func(_ session.Frame, st Status) {
			status = st
			cancel()
		})},
	}

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, 255, status.Focus)
	assert.Equal(t, "focus_set(300): applied", status.LastWrite)
	assert.Equal(t, driver.StateCapturing, status.State)
	assert.Equal(t, videotest.Name, status.Backend)
	assert.Equal(t, s.ID(), status.ID)
	assert.WithinDuration(t, time.Now(), status.Updated, time.Minute)
}

func TestLoopClosedCommands(t *testing.T) {
	s, _ := newCamera(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	commands := make(chan Command)
	close(commands)

	frames := 0
	l := &Loop{
		Camera:   s,
		Commands: commands,
		Sinks: []Sink{SinkFunc(func(session.Frame, Status) {
			frames++
			if frames == 5 {
				cancel()
			}
		})},
	}

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, 5, frames)
}

func TestLoopNotConnected(t *testing.T) {
	s, _ := newCamera(t)
	s.Disconnect()

	l := &Loop{Camera: s}
	assert.ErrorIs(t, l.Run(context.Background()), session.ErrNotConnected)
}
