package counter

import (
	"context"
	"sync"

	"github.com/sundayezeilo/slugshortener/sluggen"
)

// Memory keeps the counter in process memory. It is safe for concurrent use.
type Memory struct {
	alphabets sluggen.Alphabets

	mu    sync.Mutex
	state *sluggen.State
}

// NewMemory returns an empty in-process store; the first Load yields {0,0,0}.
func NewMemory(a sluggen.Alphabets) *Memory {
	return &Memory{alphabets: a}
}

// Load returns the current state.
func (m *Memory) Load(_ context.Context) (sluggen.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		m.state = &sluggen.State{}
	}
	return *m.state, nil
}

// Save replaces the current state with st.
func (m *Memory) Save(_ context.Context, st sluggen.State) error {
	if err := checkSaving("counter.memory.Save", m.alphabets, st); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = &st
	return nil
}
