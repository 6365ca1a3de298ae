package audio

import (
	"sync"
	"time"
)

// EndpointTimer is a restartable, cancelable single-shot timer used to
// decide that a speaker has stopped talking. Restart pushes the deadline
// out; Stop cancels a pending fire. The callback runs on the timer's own
// goroutine and must not call back into Restart/Stop while holding locks the
// callback also takes.
type EndpointTimer struct {
	mu     sync.Mutex
	window time.Duration
	fire   func()
	timer  *time.Timer
}

// NewEndpointTimer creates a stopped timer firing fire after window of
// inactivity once started.
func NewEndpointTimer(window time.Duration, fire func()) *EndpointTimer {
	return &EndpointTimer{window: window, fire: fire}
}

// Restart arms the timer, replacing any pending deadline.
func (t *EndpointTimer) Restart() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.window, t.fire)
}

// Stop cancels the pending fire, if any. It does not wait for a callback
// already running to finish.
func (t *EndpointTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
