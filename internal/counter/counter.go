// Package counter persists the single slug counter state.
//
// Every store creates the counter at {0,0,0} on first Load and never creates a
// second one, even when several callers race on first use. Save overwrites
// unconditionally; the last writer wins.
package counter

import (
	"fmt"

	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/sluggen"
)

var (
	_ sluggen.StateStore = (*Memory)(nil)
	_ sluggen.StateStore = (*Postgres)(nil)
	_ sluggen.StateStore = (*Redis)(nil)
)

func checkLoaded(op string, a sluggen.Alphabets, st sluggen.State) error {
	if st.Valid(a) {
		return nil
	}
	return errx.E(op, errx.Internal, fmt.Errorf("%w: persisted %s", sluggen.ErrInvalidState, st))
}

func checkSaving(op string, a sluggen.Alphabets, st sluggen.State) error {
	if st.Valid(a) {
		return nil
	}
	return errx.E(op, errx.Invalid, fmt.Errorf("%w: %s", sluggen.ErrInvalidState, st))
}
