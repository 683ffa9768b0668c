// Package statemachine provides a small generic state machine in the
// state-function style: each state is a function that acts on an entity and
// returns the next state, with nil meaning the machine is done. The
// simulation driver runs each bot turn as one state step.
package statemachine

import "sync"

// StateFn is one state. It may mutate the entity and returns the state to
// run next, or nil to stop.
type StateFn[T any] func(*T) StateFn[T]

// Machine drives an entity through its state functions. Safe for concurrent
// observation; stepping is serialized.
type Machine[T any] struct {
	mu     sync.Mutex
	entity *T
	state  StateFn[T]
	steps  int
}

// New creates a machine positioned at the initial state.
func New[T any](entity *T, initial StateFn[T]) *Machine[T] {
	return &Machine[T]{entity: entity, state: initial}
}

// Step runs the current state once and advances to whatever it returns.
// Returns false once the machine has stopped.
func (m *Machine[T]) Step() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return false
	}
	m.state = m.state(m.entity)
	m.steps++
	return m.state != nil
}

// Run steps until the machine stops or maxSteps is reached. Returns the
// number of steps taken and whether the machine finished.
func (m *Machine[T]) Run(maxSteps int) (int, bool) {
	taken := 0
	for !m.Done() {
		if maxSteps > 0 && taken >= maxSteps {
			return taken, false
		}
		m.Step()
		taken++
	}
	return taken, true
}

// Done reports whether the machine has stopped.
func (m *Machine[T]) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == nil
}

// Steps returns the number of state executions so far.
func (m *Machine[T]) Steps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps
}

// Set repositions the machine at the given state.
func (m *Machine[T]) Set(state StateFn[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}
