// Package v4l2 provides the "v4l2" capture backend built on
// github.com/vladimirvivien/go4vl. It is the fallback for devices the webcam
// backend fails to open.
package v4l2

// Name is the backend name used in preference lists.
const Name = "v4l2"

// defaultBufferSize is what go4vl allocates when no size is given.
const defaultBufferSize = 2
