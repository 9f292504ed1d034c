// Package webcam provides the "webcam" capture backend, V4L2 through
// github.com/blackjack/webcam.
package webcam

// Name is the backend name used in preference lists.
const Name = "webcam"
