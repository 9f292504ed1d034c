// Package probe checks what a camera supports: readable properties,
// whether autofocus can be turned off, whether the focus motor follows
// writes and which frame sizes the device delivers.
package probe

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/session"
)

var logger = logging.NewLogger("focuscam/probe")

type Resolution struct {
	Width, Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var (
	DefaultFocusValues = []int{0, 50, 100, 150, 200, 255}
	DefaultResolutions = []Resolution{
		{640, 480},
		{1280, 720},
		{1920, 1080},
		{2560, 1440},
		{3840, 2160},
		{4656, 3496},
	}
)

type Options struct {
	FocusValues  []int
	Resolutions  []Resolution
	FrameTimeout time.Duration
	// Settle is waited after writes for slow focus motors.
	Settle time.Duration
}

func DefaultOptions() Options {
	return Options{
		FocusValues:  DefaultFocusValues,
		Resolutions:  DefaultResolutions,
		FrameTimeout: 2 * time.Second,
		Settle:       100 * time.Millisecond,
	}
}

type ResolutionResult struct {
	Requested Resolution
	Actual    Resolution
	Err       error
}

func (r ResolutionResult) Supported() bool {
	return r.Err == nil && r.Actual == r.Requested
}

type Report struct {
	Backend     string
	Device      int
	Properties  map[driver.Property]int
	Unsupported []driver.Property
	Autofocus   session.PropertyResult
	Focus       []session.PropertyResult
	Resolutions []ResolutionResult
	Frame       image.Rectangle
	FrameErr    error
}

// Probe opens device index with b and runs every check. Only a failed open
// is an error; failed checks are part of the report.
func Probe(b driver.Backend, index int, opts Options) (*Report, error) {
	h, err := b.Open(index)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	r := &Report{
		Backend:    b.Name(),
		Device:     index,
		Properties: make(map[driver.Property]int),
	}

	for _, p := range driver.Properties() {
		v, err := h.GetProperty(p)
		switch {
		case err == nil:
			r.Properties[p] = v
		case errors.Is(err, driver.ErrUnsupported):
			r.Unsupported = append(r.Unsupported, p)
		default:
			logger.Debugf("read %s: %v", p, err)
		}
	}

	r.Autofocus = session.WriteProperty(h, driver.PropAutofocus, 0)
	time.Sleep(opts.Settle)

	for _, v := range opts.FocusValues {
		r.Focus = append(r.Focus, session.WriteProperty(h, driver.PropFocus, v))
		time.Sleep(opts.Settle)
	}

	for _, res := range opts.Resolutions {
		r.Resolutions = append(r.Resolutions, tryResolution(h, res, opts.FrameTimeout))
	}

	// Back to the smallest size for the final frame, like a fresh open.
	if len(opts.Resolutions) > 0 {
		tryResolution(h, opts.Resolutions[0], opts.FrameTimeout)
	}
	img, err := h.ReadFrame(opts.FrameTimeout)
	if err != nil {
		r.FrameErr = err
	} else {
		r.Frame = img.Bounds()
	}
	return r, nil
}

// tryResolution asks for a size and reads one frame, since drivers only
// settle the format once streaming starts.
func tryResolution(h driver.Handle, res Resolution, timeout time.Duration) ResolutionResult {
	rr := ResolutionResult{Requested: res}
	if err := h.SetProperty(driver.PropWidth, res.Width); err != nil {
		rr.Err = err
		return rr
	}
	if err := h.SetProperty(driver.PropHeight, res.Height); err != nil {
		rr.Err = err
		return rr
	}
	img, err := h.ReadFrame(timeout)
	if err != nil {
		rr.Err = err
		return rr
	}
	rr.Actual = Resolution{img.Bounds().Dx(), img.Bounds().Dy()}
	return rr
}

func mark(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}

func describe(r session.PropertyResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%d: %s", r.Property, r.Requested, r.Result)
	if r.ReadBack {
		fmt.Fprintf(&b, ", reads %d", r.Actual)
	}
	if r.Err != nil {
		fmt.Fprintf(&b, " (%v)", r.Err)
	}
	return b.String()
}

// WriteTo prints the report for humans.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "=== device %d via %s ===\n", r.Device, r.Backend)
	fmt.Fprintln(&b, "--- properties ---")
	for _, p := range driver.Properties() {
		if v, ok := r.Properties[p]; ok {
			fmt.Fprintf(&b, "%-20s %d\n", p, v)
		}
	}
	if len(r.Unsupported) > 0 {
		names := make([]string, len(r.Unsupported))
		for i, p := range r.Unsupported {
			names[i] = p.String()
		}
		fmt.Fprintf(&b, "not supported: %s\n", strings.Join(names, ", "))
	}

	fmt.Fprintln(&b, "--- autofocus ---")
	fmt.Fprintln(&b, describe(r.Autofocus))

	fmt.Fprintln(&b, "--- focus sweep ---")
	for _, f := range r.Focus {
		fmt.Fprintln(&b, describe(f))
	}

	fmt.Fprintln(&b, "--- resolutions ---")
	for _, res := range r.Resolutions {
		switch {
		case res.Err != nil:
			fmt.Fprintf(&b, "%-10s %s (%v)\n", res.Requested, mark(false), res.Err)
		case res.Supported():
			fmt.Fprintf(&b, "%-10s %s\n", res.Requested, mark(true))
		default:
			fmt.Fprintf(&b, "%-10s not supported, got %s\n", res.Requested, res.Actual)
		}
	}

	fmt.Fprintln(&b, "--- frame ---")
	if r.FrameErr != nil {
		fmt.Fprintf(&b, "capture %s: %v\n", mark(false), r.FrameErr)
	} else {
		fmt.Fprintf(&b, "capture %s: %dx%d\n", mark(true), r.Frame.Dx(), r.Frame.Dy())
	}

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// ListDevices prints the devices every backend can see.
func ListDevices(w io.Writer, backends []driver.Backend) error {
	for _, b := range backends {
		devices, err := b.Devices()
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", b.Name(), err)
			continue
		}
		if len(devices) == 0 {
			fmt.Fprintf(w, "%s: no devices\n", b.Name())
			continue
		}
		for _, d := range devices {
			label := d.Label
			if i := strings.Index(label, driver.LabelSeparator); i >= 0 {
				label = label[:i]
			}
			if _, err := fmt.Fprintf(w, "%s: %d %s (%s)\n", b.Name(), d.Index, d.Path, label); err != nil {
				return err
			}
		}
	}
	return nil
}
