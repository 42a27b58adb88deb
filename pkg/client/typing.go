package client

import (
	"sync"
	"time"
)

// DefaultTypingTimeout is the inactivity window after the last keystroke
// before a typing:false signal goes out.
const DefaultTypingTimeout = 2000 * time.Millisecond

// TypingCoordinator debounces keystrokes into discrete typing-start /
// typing-stop signals for one conversation. The first keystroke of a burst
// emits true; silence for the timeout, or a sent message, emits false exactly
// once. It works identically for the visitor identity.
type TypingCoordinator struct {
	mu      sync.Mutex
	typing  bool
	timer   *time.Timer
	gen     uint64
	timeout time.Duration
	emit    func(isTyping bool)
}

// NewTypingCoordinator builds a coordinator emitting through emit. A
// non-positive timeout selects DefaultTypingTimeout; tests pass a short one.
func NewTypingCoordinator(timeout time.Duration, emit func(bool)) *TypingCoordinator {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingCoordinator{timeout: timeout, emit: emit}
}

// Keystroke records input activity. Emits typing:true only on the Idle ->
// Typing transition; every keystroke re-arms the inactivity timer. The
// generation counter invalidates a timer that already fired but has not yet
// taken the lock, so a re-armed burst cannot be ended by a stale callback.
func (t *TypingCoordinator) Keystroke() {
	t.mu.Lock()
	start := !t.typing
	t.typing = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	g := t.gen
	t.timer = time.AfterFunc(t.timeout, func() { t.onTimeout(g) })
	t.mu.Unlock()
	if start {
		t.emit(true)
	}
}

// MessageSent ends the typing state immediately and cancels the pending
// timeout so no duplicate typing:false fires later.
func (t *TypingCoordinator) MessageSent() {
	t.mu.Lock()
	stop := t.typing
	t.typing = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
	if stop {
		t.emit(false)
	}
}

// Stop cancels the timer without emitting; used when the conversation view
// is left.
func (t *TypingCoordinator) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typing = false
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TypingCoordinator) onTimeout(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		// a newer keystroke, send or stop superseded this timer
		t.mu.Unlock()
		return
	}
	stop := t.typing
	t.typing = false
	t.timer = nil
	t.mu.Unlock()
	if stop {
		t.emit(false)
	}
}
