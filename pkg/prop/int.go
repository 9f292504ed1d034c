package prop

import "fmt"

// IntRanged is an inclusive integer range. Unlike a constraint it has no
// "unspecified" bound: zero is a valid Min or Max.
type IntRanged struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether a is inside the range.
func (r IntRanged) Contains(a int) bool {
	return a >= r.Min && a <= r.Max
}

// Clamp saturates a into the range.
func (r IntRanged) Clamp(a int) int {
	if a < r.Min {
		return r.Min
	}
	if a > r.Max {
		return r.Max
	}
	return a
}

func (r IntRanged) Valid() bool {
	return r.Min <= r.Max
}

func (r IntRanged) String() string {
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}
