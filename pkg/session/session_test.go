package session

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/driver/videotest"
	"github.com/focuscam/focuscam/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.DeviceIndex = 1
	opts.Width, opts.Height = 1280, 720
	opts.ManualFocus = 100
	opts.ConnectRetry = retry.Once
	opts.ReadRetry = retry.Policy{Attempts: 4, Delay: time.Millisecond}
	return opts
}

func newTestSession(t *testing.T, opts ...videotest.Option) (*Session, *videotest.Backend) {
	t.Helper()
	b := videotest.New(append([]videotest.Option{videotest.WithoutPacing()}, opts...)...)
	s := New(testOptions(), b)
	t.Cleanup(s.Disconnect)
	return s, b
}

func TestScenario(t *testing.T) {
	s, b := newTestSession(t)

	require.NoError(t, s.Connect())
	assert.Equal(t, driver.StateConnected, s.State())
	assert.Equal(t, videotest.Name, s.Backend())
	assert.NotEmpty(t, s.ID())

	f, err := s.GetFrame()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1280, 720), f.Image.Bounds())
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, driver.StateCapturing, s.State())

	res, err := s.SetFocus(255)
	require.NoError(t, err)
	assert.Equal(t, WriteApplied, res)
	assert.Equal(t, 255, s.LastFocus())

	res, err = s.SetFocus(300)
	require.NoError(t, err)
	assert.Equal(t, WriteApplied, res)
	assert.Equal(t, 255, s.LastFocus())

	focus, ok := b.Control(1, driver.PropFocus)
	require.True(t, ok)
	assert.Equal(t, 255, focus)

	s.Disconnect()
	assert.Equal(t, driver.StateDisconnected, s.State())
	assert.Empty(t, s.Backend())
	assert.Zero(t, b.OpenHandles())
}

func TestSetFocusClamps(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Connect())

	cases := map[int]int{
		-1000:   0,
		-1:      0,
		0:       0,
		128:     128,
		255:     255,
		256:     255,
		1 << 20: 255,
	}
	for in, want := range cases {
		res, err := s.SetFocus(in)
		require.NoError(t, err, "focus %d", in)
		assert.Equal(t, WriteApplied, res, "focus %d", in)
		assert.Equal(t, want, s.LastFocus(), "focus %d", in)
	}
}

func TestSetFocusDeviceClamp(t *testing.T) {
	s, _ := newTestSession(t, videotest.WithControlRange(driver.PropFocus, 0, 200))
	require.NoError(t, s.Connect())

	res, err := s.SetFocus(250)
	require.NoError(t, err)
	assert.Equal(t, WriteUnverified, res)
	assert.Equal(t, 200, s.LastFocus())
}

func TestSetFocusReassertsAutofocusOff(t *testing.T) {
	s, b := newTestSession(t)
	require.NoError(t, s.Connect())

	af, _ := b.Control(1, driver.PropAutofocus)
	require.Equal(t, 1, af)

	_, err := s.SetFocus(42)
	require.NoError(t, err)

	af, _ = b.Control(1, driver.PropAutofocus)
	assert.Equal(t, 0, af)
}

func TestDisconnectIdempotent(t *testing.T) {
	s, b := newTestSession(t)

	s.Disconnect()
	assert.Equal(t, driver.StateDisconnected, s.State())

	require.NoError(t, s.Connect())
	assert.Equal(t, 1, b.OpenHandles())

	for i := 0; i < 3; i++ {
		s.Disconnect()
		assert.Equal(t, driver.StateDisconnected, s.State())
		assert.Zero(t, b.OpenHandles())
	}

	require.NoError(t, s.Connect(), "device must be reusable after disconnect")
}

func TestConnectTwice(t *testing.T) {
	s, b := newTestSession(t)
	require.NoError(t, s.Connect())

	assert.ErrorIs(t, s.Connect(), ErrAlreadyConnected)
	assert.Equal(t, driver.StateConnected, s.State())
	assert.Equal(t, 1, b.OpenHandles())
	assert.Equal(t, 1, b.Opened())
}

func TestConnectFailure(t *testing.T) {
	a := videotest.New(videotest.WithName("a"), videotest.WithOpenError(driver.ErrBusy))
	b := videotest.New(videotest.WithName("b"), videotest.WithDevices(0))
	s := New(testOptions(), a, b)

	err := s.Connect()
	assert.ErrorIs(t, err, ErrNoBackendSucceeded)
	assert.Contains(t, err.Error(), "device 1")
	assert.Equal(t, driver.StateDisconnected, s.State())
	assert.Empty(t, s.Backend())
	assert.Zero(t, a.OpenHandles())
	assert.Zero(t, b.OpenHandles())

	_, err = s.GetFrame()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectFallback(t *testing.T) {
	a := videotest.New(videotest.WithName("a"), videotest.WithOpenError(driver.ErrBusy))
	b := videotest.New(videotest.WithName("b"), videotest.WithoutPacing())
	c := videotest.New(videotest.WithName("c"), videotest.WithoutPacing())
	s := New(testOptions(), a, b, c)
	defer s.Disconnect()

	require.NoError(t, s.Connect())
	assert.Equal(t, "b", s.Backend())
	assert.Equal(t, 1, b.OpenHandles())
	assert.Zero(t, c.Opened())
}

func TestConnectRounds(t *testing.T) {
	testCases := map[string]struct {
		failures int
		rounds   int
		ok       bool
	}{
		"FirstRound":  {failures: 0, rounds: 1, ok: true},
		"ThirdRound":  {failures: 2, rounds: 3, ok: true},
		"OutOfRounds": {failures: 3, rounds: 3, ok: false},
	}

	for name, c := range testCases {
		c := c
		t.Run(name, func(t *testing.T) {
			b := videotest.New(videotest.WithoutPacing(), videotest.WithOpenFailures(c.failures))
			opts := testOptions()
			opts.ConnectRetry = retry.Policy{Attempts: c.rounds, Delay: time.Millisecond}
			s := New(opts, b)
			defer s.Disconnect()

			err := s.Connect()
			if !c.ok {
				assert.ErrorIs(t, err, ErrNoBackendSucceeded)
				assert.Equal(t, driver.StateDisconnected, s.State())
				assert.Zero(t, b.OpenHandles())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, driver.StateConnected, s.State())
		})
	}
}

func TestConnectResolvesRegistry(t *testing.T) {
	opts := testOptions()
	opts.Backends = []string{"no-such-backend"}
	s := New(opts)
	assert.ErrorIs(t, s.Connect(), ErrNoBackendSucceeded)

	opts.Backends = []string{"no-such-backend", videotest.Name}
	s = New(opts)
	defer s.Disconnect()
	require.NoError(t, s.Connect())
	assert.Equal(t, videotest.Name, s.Backend())
}

func TestNotConnected(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.GetFrame()
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.SetFocus(10)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.DisableAutofocus()
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Configure()
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Info()
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.Equal(t, driver.StateDisconnected, s.State())
	assert.Equal(t, 100, s.LastFocus())
	assert.Zero(t, s.Frames())
}

func TestGetFrameRetries(t *testing.T) {
	testCases := map[string]struct {
		failures int
		ok       bool
	}{
		"NoFailure":        {failures: 0, ok: true},
		"ThreeThenSuccess": {failures: 3, ok: true},
		"Exhausted":        {failures: 4, ok: false},
	}

	for name, c := range testCases {
		c := c
		t.Run(name, func(t *testing.T) {
			s, _ := newTestSession(t, videotest.WithReadFailures(c.failures))
			require.NoError(t, s.Connect())

			f, err := s.GetFrame()
			if !c.ok {
				assert.ErrorIs(t, err, ErrReadFailed)
				assert.ErrorIs(t, err, driver.ErrReadTimeout)
				assert.Equal(t, driver.StateConnected, s.State())
				assert.Zero(t, s.Frames())
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, f.Image)
			assert.Equal(t, driver.StateCapturing, s.State())
		})
	}
}

func TestGetFrameFailureKeepsCapturing(t *testing.T) {
	s, b := newTestSession(t)
	require.NoError(t, s.Connect())

	_, err := s.GetFrame()
	require.NoError(t, err)

	b.FailReads(1, 10)
	_, err = s.GetFrame()
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.Equal(t, driver.StateCapturing, s.State())

	b.FailReads(1, 0)
	f, err := s.GetFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)
}

type closedHandle struct {
	driver.Handle
	reads int
}

func (h *closedHandle) SetProperty(driver.Property, int) error { return nil }
func (h *closedHandle) Close() error                           { return nil }

func (h *closedHandle) ReadFrame(time.Duration) (image.Image, error) {
	h.reads++
	return nil, driver.ErrClosed
}

type closedBackend struct {
	h *closedHandle
}

func (b *closedBackend) Name() string                          { return "closed" }
func (b *closedBackend) Devices() ([]driver.DeviceInfo, error) { return nil, nil }
func (b *closedBackend) Open(int) (driver.Handle, error)       { return b.h, nil }

func TestGetFrameClosedIsPermanent(t *testing.T) {
	b := &closedBackend{h: &closedHandle{}}
	s := New(testOptions(), b)
	require.NoError(t, s.Connect())
	defer s.Disconnect()

	_, err := s.GetFrame()
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.ErrorIs(t, err, driver.ErrClosed)
	assert.Equal(t, 1, b.h.reads)
}

func TestConfigure(t *testing.T) {
	bright, contrast, sharp := 10, 500, 2
	s, b := newTestSession(t)
	s.opts.Image = ImageSettings{Brightness: &bright, Contrast: &contrast, Sharpness: &sharp}
	require.NoError(t, s.Connect())

	report, err := s.Configure()
	require.NoError(t, err)

	assert.Equal(t, WriteApplied, report.Focus.Autofocus.Result)
	assert.Equal(t, WriteApplied, report.Focus.Focus.Result)
	assert.True(t, report.Focus.Supported())
	assert.Equal(t, 100, s.LastFocus())

	require.Len(t, report.Image, 3)
	assert.Equal(t, driver.PropBrightness, report.Image[0].Property)
	assert.Equal(t, WriteApplied, report.Image[0].Result)
	assert.Equal(t, driver.PropContrast, report.Image[1].Property)
	assert.Equal(t, WriteUnverified, report.Image[1].Result)
	assert.Equal(t, 95, report.Image[1].Actual)
	assert.Equal(t, WriteApplied, report.Image[2].Result)

	v, _ := b.Control(1, driver.PropBrightness)
	assert.Equal(t, 10, v)
}

func TestConfigureWithoutFocusControls(t *testing.T) {
	s, _ := newTestSession(t, videotest.WithoutFocusControls())
	require.NoError(t, s.Connect())

	report, err := s.Configure()
	require.NoError(t, err)
	assert.Equal(t, WriteRejected, report.Focus.Autofocus.Result)
	assert.Equal(t, WriteRejected, report.Focus.Focus.Result)
	assert.True(t, report.Focus.Focus.Unsupported())
	assert.False(t, report.Focus.Supported())

	res, err := s.SetFocus(200)
	require.NoError(t, err)
	assert.Equal(t, WriteRejected, res)
	assert.Equal(t, 100, s.LastFocus())

	_, err = s.GetFrame()
	require.NoError(t, err)
	assert.Equal(t, driver.StateCapturing, s.State())
}

func TestDisableAutofocusStuck(t *testing.T) {
	s, _ := newTestSession(t, videotest.WithStuckAutofocus())
	s.opts.Autofocus = true
	s.opts.ManualFocus = 400
	require.NoError(t, s.Connect())

	report, err := s.DisableAutofocus()
	require.NoError(t, err)
	assert.Equal(t, WriteUnverified, report.Autofocus.Result)
	assert.True(t, report.Autofocus.ReadBack)
	assert.Equal(t, 1, report.Autofocus.Actual)
	assert.Equal(t, 255, report.Focus.Requested)
	assert.Equal(t, 255, s.LastFocus())
}

func TestInfo(t *testing.T) {
	s, _ := newTestSession(t)
	require.NoError(t, s.Connect())
	_, err := s.GetFrame()
	require.NoError(t, err)

	info, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, s.ID(), info.ID)
	assert.Equal(t, videotest.Name, info.Backend)
	assert.Equal(t, 1, info.DeviceIndex)
	assert.Equal(t, driver.StateCapturing, info.State)
	assert.Equal(t, uint64(1), info.Frames)
	assert.Equal(t, 1280, info.Properties[driver.PropWidth])
	assert.Equal(t, 720, info.Properties[driver.PropHeight])
	assert.Equal(t, 30, info.Properties[driver.PropFPS])
	assert.Contains(t, info.Unsupported, driver.PropZoom)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	testCases := map[string]func(*Options){
		"NegativeDevice": func(o *Options) { o.DeviceIndex = -1 },
		"NoBackends":     func(o *Options) { o.Backends = nil },
		"ZeroWidth":      func(o *Options) { o.Width = 0 },
		"ZeroFPS":        func(o *Options) { o.FPS = 0 },
		"ZeroBuffer":     func(o *Options) { o.BufferSize = 0 },
		"FocusRange":     func(o *Options) { o.FocusRange.Min = 300 },
		"ZeroTimeout":    func(o *Options) { o.FrameTimeout = 0 },
	}
	for name, mutate := range testCases {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			o := DefaultOptions()
			mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestWriteResultString(t *testing.T) {
	assert.Equal(t, "applied", WriteApplied.String())
	assert.Equal(t, "unverified", WriteUnverified.String())
	assert.Equal(t, "rejected", WriteRejected.String())
	assert.Equal(t, "unknown", WriteResult(9).String())
	assert.False(t, errors.Is(ErrReadFailed, ErrNotConnected))
}
