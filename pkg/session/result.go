package session

import (
	"errors"

	"github.com/focuscam/focuscam/pkg/driver"
)

// WriteResult tells apart a property write the device definitely refused
// from one whose effect could not be confirmed. Many UVC devices accept
// writes they then ignore, so a boolean would lie in one direction or the
// other.
type WriteResult int

const (
	// WriteApplied means the device accepted the write and reads back the
	// value written.
	WriteApplied WriteResult = iota
	// WriteUnverified means the device accepted the write, but the value
	// could not be read back or reads back differently.
	WriteUnverified
	// WriteRejected means the device refused the write or does not expose
	// the property.
	WriteRejected
)

func (r WriteResult) String() string {
	switch r {
	case WriteApplied:
		return "applied"
	case WriteUnverified:
		return "unverified"
	case WriteRejected:
		return "rejected"
	}
	return "unknown"
}

// PropertyResult is the outcome of one write.
type PropertyResult struct {
	Property  driver.Property
	Requested int
	// Actual is the read back value, valid when ReadBack is true.
	Actual   int
	ReadBack bool
	Result   WriteResult
	Err      error
}

// WriteProperty sets p on h and reads it back to classify the outcome.
func WriteProperty(h driver.Handle, p driver.Property, value int) PropertyResult {
	return write(h, p, value, true)
}

// write sets p and, when verify is true, reads it back. Without
// verification an accepted write is unverified.
func write(h driver.Handle, p driver.Property, value int, verify bool) PropertyResult {
	r := PropertyResult{Property: p, Requested: value}

	if err := h.SetProperty(p, value); err != nil {
		r.Result = WriteRejected
		r.Err = err
		return r
	}

	r.Result = WriteUnverified
	if !verify {
		return r
	}

	actual, err := h.GetProperty(p)
	if err != nil {
		r.Err = err
		return r
	}
	r.Actual, r.ReadBack = actual, true
	if actual == value {
		r.Result = WriteApplied
	}
	return r
}

// Unsupported reports whether a rejected write was due to missing hardware
// support rather than an I/O failure.
func (r PropertyResult) Unsupported() bool {
	return r.Result == WriteRejected && errors.Is(r.Err, driver.ErrUnsupported)
}

// FocusReport is the outcome of DisableAutofocus.
type FocusReport struct {
	Autofocus PropertyResult
	Focus     PropertyResult
}

// Supported reports whether the device exposes a focus motor at all.
func (f FocusReport) Supported() bool {
	return !f.Focus.Unsupported()
}

// Report is the outcome of Configure.
type Report struct {
	Focus FocusReport
	Image []PropertyResult
}
