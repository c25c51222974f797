package voice

import "sync"

// InitState is the initialization state of one backend instance.
type InitState int

const (
	// StateUninitialized is the state before the first initialization attempt.
	StateUninitialized InitState = iota
	// StateInitializing means an initialization attempt is in progress.
	StateInitializing
	// StateReady means the engine is usable.
	StateReady
	// StateFailed means the last initialization attempt failed.
	StateFailed
)

// String returns the state name.
func (s InitState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateMachine guards the initialization state of a backend.
//
// Transitions only move forward (Uninitialized -> Initializing -> Ready or
// Failed) except Failed -> Initializing on retry. Close is terminal and
// independent of the state: a closed machine never reports Ready again.
// The zero value is an uninitialized machine.
type StateMachine struct {
	mu     sync.Mutex
	state  InitState
	err    error
	closed bool
}

// State returns the current state.
func (m *StateMachine) State() InitState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether the backend may serve calls.
func (m *StateMachine) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateReady && !m.closed
}

// Err returns the error recorded by the last Fail.
func (m *StateMachine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Begin moves to Initializing from Uninitialized or Failed. It returns false
// when another attempt is running, the backend is already Ready, or the
// machine is closed.
func (m *StateMachine) Begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	switch m.state {
	case StateUninitialized, StateFailed:
		m.state = StateInitializing
		m.err = nil
		return true
	default:
		return false
	}
}

// Succeed completes an attempt started with Begin.
func (m *StateMachine) Succeed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInitializing || m.closed {
		return false
	}
	m.state = StateReady
	return true
}

// Fail records err and ends an attempt started with Begin.
func (m *StateMachine) Fail(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateInitializing {
		return false
	}
	m.state = StateFailed
	m.err = err
	return true
}

// Close marks the machine closed. It returns false if already closed.
func (m *StateMachine) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.closed = true
	return true
}

// Closed reports whether Close has been called.
func (m *StateMachine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
