// Package session owns one open camera. It connects through the first
// backend that can open the device, forces manual focus and reads frames
// with a bounded retry. A Session is not safe for concurrent use: one
// goroutine owns it for its whole life.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/prop"
	"github.com/focuscam/focuscam/pkg/retry"
	"github.com/google/uuid"
)

var logger = logging.NewLogger("focuscam/session")

// Frame is one captured image.
type Frame struct {
	Image image.Image
	// Seq counts successful reads on the session, starting at 1.
	Seq       uint64
	Timestamp time.Time
}

type Session struct {
	opts     Options
	backends []driver.Backend
	id       string

	state     driver.State
	handle    driver.Handle
	backend   string
	lastFocus int
	frames    uint64
}

// New creates a disconnected session. Without explicit backends, Connect
// resolves opts.Backends through the driver manager.
func New(opts Options, backends ...driver.Backend) *Session {
	return &Session{
		opts:      opts,
		backends:  backends,
		id:        uuid.NewString(),
		state:     driver.StateDisconnected,
		lastFocus: opts.FocusRange.Clamp(opts.ManualFocus),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() driver.State {
	return s.state
}

// Backend is the name of the backend holding the device, or empty.
func (s *Session) Backend() string {
	return s.backend
}

// LastFocus is the last focus value the device accepted. Before any write
// succeeded it is the configured manual focus, clamped.
func (s *Session) LastFocus() int {
	return s.lastFocus
}

func (s *Session) FocusRange() prop.IntRanged {
	return s.opts.FocusRange
}

func (s *Session) Options() Options {
	return s.opts
}

// Frames is the number of frames read so far.
func (s *Session) Frames() uint64 {
	return s.frames
}

func (s *Session) resolve() ([]driver.Backend, error) {
	if len(s.backends) > 0 {
		return s.backends, nil
	}
	return driver.GetManager().Resolve(s.opts.Backends)
}

// Connect opens the device with the first backend that succeeds, trying the
// whole preference list once per round of the connect policy. On failure
// the session stays disconnected and holds nothing.
func (s *Session) Connect() error {
	if s.handle != nil {
		return ErrAlreadyConnected
	}

	backends, err := s.resolve()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoBackendSucceeded, err)
	}

	var (
		h    driver.Handle
		name string
	)
	open := func(round int) error {
		errs := make([]error, 0, len(backends))
		for _, b := range backends {
			handle, err := b.Open(s.opts.DeviceIndex)
			if err != nil {
				logger.Debugf("round %d: backend %s cannot open device %d: %v", round, b.Name(), s.opts.DeviceIndex, err)
				errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
				continue
			}
			h, name = handle, b.Name()
			return nil
		}
		return errors.Join(errs...)
	}
	notify := func(err error, round int, next time.Duration) {
		logger.Warnf("connect round %d to device %d failed, retrying in %s", round, s.opts.DeviceIndex, next)
	}

	err = retry.DoNotify(context.Background(), s.opts.ConnectRetry, open, notify)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrNoBackendSucceeded, s.opts.DeviceIndex, err)
	}

	err = s.state.Update(driver.StateConnected, func() error {
		s.handle, s.backend = h, name
		return nil
	})
	if err != nil {
		h.Close()
		return err
	}

	s.applyStream()
	logger.Infof("session %s connected to device %d with backend %s", s.id, s.opts.DeviceIndex, s.backend)
	return nil
}

// applyStream requests the stream format. Devices commonly substitute the
// nearest mode they support, so nothing here is verified.
func (s *Session) applyStream() {
	writes := []setting{
		{driver.PropWidth, s.opts.Width},
		{driver.PropHeight, s.opts.Height},
		{driver.PropFPS, int(math.Round(s.opts.FPS))},
		{driver.PropBufferSize, s.opts.BufferSize},
	}
	for _, w := range writes {
		r := write(s.handle, w.prop, w.value, false)
		if r.Err != nil {
			logger.Debugf("set %s=%d: %v", w.prop, w.value, r.Err)
			continue
		}
		logger.Debugf("set %s=%d: %s", w.prop, w.value, r.Result)
	}
}

func (s *Session) requireConnected() error {
	if s.handle == nil {
		return ErrNotConnected
	}
	return nil
}

// DisableAutofocus turns autofocus off and writes the configured manual
// focus. Devices without focus controls are reported, not failed.
func (s *Session) DisableAutofocus() (FocusReport, error) {
	if err := s.requireConnected(); err != nil {
		return FocusReport{}, err
	}

	if s.opts.Autofocus {
		logger.Warn("autofocus requested in config, forcing it off for manual focus")
	}

	var report FocusReport
	report.Autofocus = write(s.handle, driver.PropAutofocus, 0, true)
	switch {
	case report.Autofocus.Unsupported():
		logger.Warn("device exposes no autofocus control")
	case report.Autofocus.Result == WriteRejected:
		logger.Warnf("disabling autofocus failed: %v", report.Autofocus.Err)
	case report.Autofocus.ReadBack && report.Autofocus.Actual != 0:
		logger.Warnf("autofocus still reports %d after disabling it", report.Autofocus.Actual)
	}

	report.Focus = s.writeFocus(s.opts.FocusRange.Clamp(s.opts.ManualFocus))
	return report, nil
}

// Configure applies the focus settings and then the optional image
// settings, one result per property.
func (s *Session) Configure() (Report, error) {
	focus, err := s.DisableAutofocus()
	if err != nil {
		return Report{}, err
	}

	report := Report{Focus: focus}
	for _, w := range s.opts.Image.settings() {
		r := write(s.handle, w.prop, w.value, true)
		if r.Result == WriteRejected {
			logger.Warnf("set %s=%d rejected: %v", w.prop, w.value, r.Err)
		} else {
			logger.Debugf("set %s=%d: %s", w.prop, w.value, r.Result)
		}
		report.Image = append(report.Image, r)
	}
	return report, nil
}

// SetFocus clamps v into the focus range and writes it. Autofocus is
// asserted off first since some devices turn it back on by themselves.
// A device refusing the write is not an error; the result says so.
func (s *Session) SetFocus(v int) (WriteResult, error) {
	if err := s.requireConnected(); err != nil {
		return WriteRejected, err
	}

	clamped := s.opts.FocusRange.Clamp(v)
	if clamped != v {
		logger.Debugf("focus %d clamped to %d", v, clamped)
	}

	if err := s.handle.SetProperty(driver.PropAutofocus, 0); err != nil && !errors.Is(err, driver.ErrUnsupported) {
		logger.Debugf("re-asserting autofocus off: %v", err)
	}

	r := s.writeFocus(clamped)
	return r.Result, nil
}

func (s *Session) writeFocus(v int) PropertyResult {
	r := write(s.handle, driver.PropFocus, v, true)
	switch {
	case r.Result == WriteRejected:
		logger.Warnf("focus %d rejected: %v", v, r.Err)
		return r
	case r.ReadBack:
		if r.Actual != v {
			logger.Debugf("focus %d reads back as %d", v, r.Actual)
		}
		s.lastFocus = r.Actual
	default:
		s.lastFocus = v
	}
	logger.Debugf("focus set to %d (%s)", s.lastFocus, r.Result)
	return r
}

// GetFrame reads one frame, retrying transient failures under the read
// policy. A failure leaves the session connected; the caller decides
// whether to keep going.
func (s *Session) GetFrame() (Frame, error) {
	if err := s.requireConnected(); err != nil {
		return Frame{}, err
	}

	var img image.Image
	read := func(attempt int) error {
		frame, err := s.handle.ReadFrame(s.opts.FrameTimeout)
		if err != nil {
			if errors.Is(err, driver.ErrClosed) {
				return retry.Permanent(err)
			}
			return err
		}
		img = frame
		return nil
	}
	notify := func(err error, attempt int, next time.Duration) {
		logger.Debugf("frame read attempt %d failed: %v", attempt, err)
	}

	if err := retry.DoNotify(context.Background(), s.opts.ReadRetry, read, notify); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	err := s.state.Update(driver.StateCapturing, func() error {
		s.frames++
		return nil
	})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Image: img, Seq: s.frames, Timestamp: time.Now()}, nil
}

// Disconnect releases the device. It is safe to call at any time and any
// number of times.
func (s *Session) Disconnect() {
	if s.handle == nil {
		s.state = driver.StateDisconnected
		return
	}

	h := s.handle
	s.state.Update(driver.StateDisconnected, func() error {
		s.handle, s.backend = nil, ""
		return nil
	})
	if err := h.Close(); err != nil {
		logger.Warnf("closing device %d: %v", s.opts.DeviceIndex, err)
	}
	logger.Infof("session %s disconnected", s.id)
}
