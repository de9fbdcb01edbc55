package sluggen

import "fmt"

// State is the persisted position of the three wheels.
type State struct {
	First  int `json:"firstIndex"`
	Second int `json:"secondIndex"`
	Last   int `json:"lastIndex"`
}

// Valid reports whether every index is within its wheel.
func (s State) Valid(a Alphabets) bool {
	return s.First >= 0 && s.First < len(a.First) &&
		s.Second >= 0 && s.Second < len(a.Second) &&
		s.Last >= 0 && s.Last < len(a.Last)
}

// String implements fmt.Stringer.
func (s State) String() string {
	return fmt.Sprintf("{%d,%d,%d}", s.First, s.Second, s.Last)
}

// Render returns the slug at position s. The caller must ensure s is Valid.
func Render(a Alphabets, s State) string {
	return string([]byte{a.First[s.First], a.Second[s.Second], a.Last[s.Last]})
}

// Advance moves the counter one step, least significant wheel first.
// After the last combination the first wheel wraps silently back to 0.
func Advance(a Alphabets, s State) State {
	s.Last++
	if s.Last < len(a.Last) {
		return s
	}

	s.Last = 0
	s.Second++
	if s.Second < len(a.Second) {
		return s
	}

	s.Second = 0
	s.First++
	if s.First >= len(a.First) {
		s.First = 0
	}
	return s
}

// Ordinal returns the position of s in the full enumeration, starting at 0 for {0,0,0}.
func Ordinal(a Alphabets, s State) int {
	return (s.First*len(a.Second)+s.Second)*len(a.Last) + s.Last
}
