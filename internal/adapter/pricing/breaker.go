package pricing

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker guards the pricing dependency. One instance is shared by
// all calls; state is mutated under its own mutex, independent of any
// book-level lock.
//
// Closed passes calls through and tracks outcomes in a rolling window;
// once the window is full and the failure ratio reaches the threshold it
// opens. Open short-circuits everything until the cool-down elapses, then
// admits a single half-open probe. A successful probe closes the breaker
// and resets the window; a failed one reopens it and restarts the
// cool-down. Calls arriving while the probe is in flight are
// short-circuited.
type CircuitBreaker struct {
	mu sync.Mutex

	state    breakerState
	window   []bool // rolling outcomes, true = failure
	next     int
	filled   bool
	openedAt time.Time
	probing  bool

	failureRatio float64
	cooldown     time.Duration

	now func() time.Time
}

func NewCircuitBreaker(windowSize int, failureRatio float64, cooldown time.Duration) *CircuitBreaker {
	if windowSize < 1 {
		windowSize = 1
	}
	return &CircuitBreaker{
		state:        stateClosed,
		window:       make([]bool, windowSize),
		failureRatio: failureRatio,
		cooldown:     cooldown,
		now:          time.Now,
	}
}

// Allow reports whether a call may contact the dependency. A true return
// must be followed by exactly one Record call with the outcome.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = stateHalfOpen
		cb.probing = true
		log.Info().Msg("circuit breaker half-open, probing dependency")
		return true
	case stateHalfOpen:
		// one probe at a time; everyone else is treated as open
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return false
}

// Record feeds a call outcome back into the state machine.
func (cb *CircuitBreaker) Record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		cb.window[cb.next] = !success
		cb.next = (cb.next + 1) % len(cb.window)
		if cb.next == 0 {
			cb.filled = true
		}
		if cb.filled && cb.currentFailureRatio() >= cb.failureRatio {
			cb.open()
		}
	case stateHalfOpen:
		cb.probing = false
		if success {
			cb.close()
		} else {
			cb.open()
		}
	case stateOpen:
		// outcome of a call admitted before the transition; nothing to do
	}
}

// State returns the current state name, for logging and status output.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

func (cb *CircuitBreaker) currentFailureRatio() float64 {
	failures := 0
	for _, failed := range cb.window {
		if failed {
			failures++
		}
	}
	return float64(failures) / float64(len(cb.window))
}

func (cb *CircuitBreaker) open() {
	cb.state = stateOpen
	cb.openedAt = cb.now()
	log.Warn().Dur("cooldown", cb.cooldown).Msg("circuit breaker opened")
}

func (cb *CircuitBreaker) close() {
	cb.state = stateClosed
	cb.window = make([]bool, len(cb.window))
	cb.next = 0
	cb.filled = false
	log.Info().Msg("circuit breaker closed")
}
