package custody

import "sync"

// ReentrancyGuard is the two-state mutex wrapped around every operation that
// performs an external value transfer. Acquire fails instead of blocking so a
// transfer hook calling back into the engine is rejected rather than
// deadlocked.
type ReentrancyGuard struct {
	mu     sync.Mutex
	locked bool
}

// NewReentrancyGuard returns a guard in the unlocked state.
func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{}
}

// Acquire transitions the guard to the locked state. It returns ErrReentrancy
// when the guard is already held by an in-flight operation.
func (g *ReentrancyGuard) Acquire() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return ErrReentrancy
	}
	g.locked = true
	return nil
}

// Release transitions the guard back to unlocked unconditionally. It must run
// on every exit path, including failures, so a single failed call never leaves
// the engine permanently locked.
func (g *ReentrancyGuard) Release() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.locked = false
	g.mu.Unlock()
}
