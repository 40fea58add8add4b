package relay

import (
	"sync"
	"time"
)

// Debouncer coalesces values on a trailing edge: the first Trigger in a
// window arms the timer, later Triggers replace the pending value, and
// expiry emits only the latest. Stop guarantees the callback never fires
// after teardown.
type Debouncer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	emit    func(T)
	timer   *time.Timer
	pending T
	armed   bool
	stopped bool
}

func NewDebouncer[T any](window time.Duration, emit func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		window: window,
		emit:   emit,
	}
}

func (self *Debouncer[T]) Trigger(value T) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.stopped {
		return
	}
	self.pending = value
	self.armed = true
	if self.timer == nil {
		self.timer = time.AfterFunc(self.window, self.fire)
	}
}

func (self *Debouncer[T]) fire() {
	self.mu.Lock()
	if self.stopped || !self.armed {
		self.timer = nil
		self.mu.Unlock()
		return
	}
	value := self.pending
	var zero T
	self.pending = zero
	self.armed = false
	self.timer = nil
	self.mu.Unlock()

	self.emit(value)
}

func (self *Debouncer[T]) Stop() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.stopped = true
	self.armed = false
	if self.timer != nil {
		self.timer.Stop()
		self.timer = nil
	}
}
