// Package sluggen allocates short slugs from a persistent mixed-radix counter.
//
// A slug is one character from each of three wheels. The counter behaves like an
// odometer: the last wheel turns first and carries into the second, which carries
// into the first. Nothing in this package performs I/O on its own; state comes in
// and goes out as plain values, and uniqueness is delegated to an Oracle.
package sluggen

import (
	"errors"
	"fmt"
)

// Wheel alphabets used in production. Order matters: a counter index selects
// the character at that position.
const (
	FirstWheel  = "BcUb80qrR65y7jO1uxGLKAl4eWzYP3dZgXtJvfoIskp9mNn2CwMEDihFTVHaSQ"
	SecondWheel = "m2CBDZ48YJIkndMEy03iNg-GT7Lph.QqXHaSsv6fRoFzjVlr9xctbeW1OuAUKPw5"
	LastWheel   = "putmbQe3rhGMl0awAUVfS5X1ILR4ZOsgoyHKq8nvj6TY7JDC9NizkBxEPWF2dc"
)

// SlugLength is the number of characters in every generated slug.
const SlugLength = 3

// Alphabets holds the three wheels of the counter.
type Alphabets struct {
	First  string
	Second string
	Last   string
}

// Default returns the production alphabets.
func Default() Alphabets {
	return Alphabets{First: FirstWheel, Second: SecondWheel, Last: LastWheel}
}

// Validate checks that every wheel is non-empty, single-byte and free of duplicates.
func (a Alphabets) Validate() error {
	for _, w := range []struct {
		name  string
		chars string
	}{
		{"first", a.First},
		{"second", a.Second},
		{"last", a.Last},
	} {
		if w.chars == "" {
			return fmt.Errorf("%s wheel is empty", w.name)
		}

		seen := make(map[rune]struct{}, len(w.chars))
		for _, c := range w.chars {
			if c > 0x7f {
				return fmt.Errorf("%s wheel contains non-ASCII character %q", w.name, c)
			}
			if _, dup := seen[c]; dup {
				return fmt.Errorf("%s wheel contains duplicate character %q", w.name, c)
			}
			seen[c] = struct{}{}
		}
	}
	return nil
}

// Space returns the number of distinct slugs the wheels can produce.
func (a Alphabets) Space() int {
	return len(a.First) * len(a.Second) * len(a.Last)
}

// Parse returns the counter state that renders slug.
func (a Alphabets) Parse(slug string) (State, error) {
	if len(slug) != SlugLength {
		return State{}, fmt.Errorf("slug %q must be %d characters", slug, SlugLength)
	}

	st := State{
		First:  indexByte(a.First, slug[0]),
		Second: indexByte(a.Second, slug[1]),
		Last:   indexByte(a.Last, slug[2]),
	}
	if st.First < 0 || st.Second < 0 || st.Last < 0 {
		return State{}, errors.New("slug contains characters outside the alphabets")
	}
	return st, nil
}

func indexByte(s string, c byte) int {
	for i := range len(s) {
		if s[i] == c {
			return i
		}
	}
	return -1
}
