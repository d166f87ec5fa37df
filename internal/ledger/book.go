package ledger

import "sync"

// Observer is notified after every successful transition, while the book's
// lock is held. Observers must not call back into the Book.
type Observer func(cmd Command, prev, next State)

// Book owns the single mutable ledger state. Dispatch serializes all
// commands, so ticks and trades interleave in arrival order and each
// transition is atomic.
type Book struct {
	mu        sync.Mutex
	state     State
	reducer   Reducer
	observers []Observer
}

// NewBook creates a book starting from initial.
func NewBook(initial State, r Reducer) *Book {
	return &Book{state: initial, reducer: r}
}

// Observe registers fn for successful transitions.
func (b *Book) Observe(fn Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// Dispatch applies cmd and returns the resulting state. A failed command
// still replaces the current error message.
func (b *Book) Dispatch(cmd Command) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.state
	next, err := b.reducer.Apply(prev, cmd)
	b.state = next
	if err != nil {
		return next, err
	}
	for _, fn := range b.observers {
		fn(cmd, prev, next)
	}
	return next, nil
}

// Snapshot returns the current state. States are never mutated in place,
// so the result is safe to read without further locking.
func (b *Book) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
