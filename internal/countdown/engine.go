// Package countdown runs the per-lobby countdown timers. One timer per pin;
// starting a new one replaces (and cancels) the previous one, which is the
// only cancellation path besides Stop. Timers are not required to be backed
// by a live lobby: a headless pin just ticks into whatever sink was handed
// in, which is how solo practice sessions run.
package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

type Mode string

const (
	ModeStandard           Mode = "standard"
	ModeQuestionTransition Mode = "transition"
	ModePanic              Mode = "panic"
	ModeWatchdog           Mode = "watchdog"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeStandard, ModeQuestionTransition, ModePanic, ModeWatchdog:
		return Mode(s), true
	case "":
		return ModeStandard, true
	default:
		return "", false
	}
}

// Sink receives every broadcast a timer produces. Implementations must not
// block; timer goroutines share no other backpressure mechanism.
type Sink func(types.ServerMessage)

type Config struct {
	TickPeriod  time.Duration
	PanicFactor int
}

type Engine struct {
	clock clockwork.Clock
	log   *zap.Logger
	cfg   Config

	mu     sync.Mutex
	gen    uint64
	timers map[string]*handle
}

// handle is one live timer. remaining is guarded by Engine.mu; everything
// else is immutable after Start.
type handle struct {
	gen       uint64
	pin       string
	mode      Mode
	remaining int
	sink      Sink
	onExpire  func()
	cancel    chan struct{}
}

func NewEngine(clock clockwork.Clock, cfg Config, log *zap.Logger) *Engine {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = time.Second
	}
	if cfg.PanicFactor < 2 {
		cfg.PanicFactor = 4
	}
	return &Engine{
		clock:  clock,
		log:    log,
		cfg:    cfg,
		timers: map[string]*handle{},
	}
}

// Start begins a countdown of ticks steps for pin, replacing any timer
// already running there. onExpire, if non-nil, runs once when the countdown
// reaches zero (not when it is replaced or stopped); the watchdog mode relies
// on it since it broadcasts nothing at all.
func (e *Engine) Start(pin string, ticks int, mode Mode, sink Sink, onExpire func()) {
	e.mu.Lock()
	if old, ok := e.timers[pin]; ok {
		close(old.cancel)
	}
	e.gen++
	h := &handle{
		gen:       e.gen,
		pin:       pin,
		mode:      mode,
		remaining: ticks,
		sink:      sink,
		onExpire:  onExpire,
		cancel:    make(chan struct{}),
	}
	e.timers[pin] = h
	e.mu.Unlock()

	if mode == ModeQuestionTransition {
		sink(types.ServerMessage{Type: types.EvQuestionTransition, Transition: true})
	}
	if mode != ModeWatchdog {
		sink(types.ServerMessage{Type: types.EvCountdown, Remaining: ticks})
	}
	e.log.Debug("countdown started",
		zap.String("pin", pin), zap.String("mode", string(mode)), zap.Int("ticks", ticks))

	go e.run(h)
}

// Stop cancels the pin's timer and returns how many ticks were left, so
// callers can pause/resume by restarting with the remainder. No broadcast is
// made; the caller decides whether the stop is announced.
func (e *Engine) Stop(pin string) (remaining int, stopped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.timers[pin]
	if !ok {
		return 0, false
	}
	close(h.cancel)
	delete(e.timers, pin)
	return h.remaining, true
}

// EnablePanic swaps the pin's running timer to the accelerated tick rate,
// keeping the remaining count, and announces panicMode once.
func (e *Engine) EnablePanic(pin string) bool {
	e.mu.Lock()
	h, ok := e.timers[pin]
	if !ok || h.mode == ModePanic {
		e.mu.Unlock()
		return false
	}
	close(h.cancel)
	e.gen++
	next := &handle{
		gen:       e.gen,
		pin:       pin,
		mode:      ModePanic,
		remaining: h.remaining,
		sink:      h.sink,
		onExpire:  h.onExpire,
		cancel:    make(chan struct{}),
	}
	e.timers[pin] = next
	e.mu.Unlock()

	next.sink(types.ServerMessage{Type: types.EvPanicMode})
	e.log.Debug("panic mode enabled", zap.String("pin", pin), zap.Int("remaining", next.remaining))
	go e.run(next)
	return true
}

// Active reports whether a timer is currently running for pin.
func (e *Engine) Active(pin string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.timers[pin]
	return ok
}

func (e *Engine) period(mode Mode) time.Duration {
	if mode == ModePanic {
		return e.cfg.TickPeriod / time.Duration(e.cfg.PanicFactor)
	}
	return e.cfg.TickPeriod
}

func (e *Engine) run(h *handle) {
	ticker := e.clock.NewTicker(e.period(h.mode))
	defer ticker.Stop()

	for {
		select {
		case <-h.cancel:
			return
		case <-ticker.Chan():
			e.mu.Lock()
			cur, ok := e.timers[h.pin]
			if !ok || cur.gen != h.gen {
				// Stale fire from a replaced timer; drop it.
				e.mu.Unlock()
				return
			}
			h.remaining--
			rem := h.remaining
			if rem <= 0 {
				delete(e.timers, h.pin)
			}
			e.mu.Unlock()

			if rem > 0 {
				if h.mode != ModeWatchdog {
					h.sink(types.ServerMessage{Type: types.EvCountdown, Remaining: rem})
				}
				continue
			}

			e.expire(h)
			return
		}
	}
}

func (e *Engine) expire(h *handle) {
	switch h.mode {
	case ModeWatchdog:
		// Silent: no intermediate ticks were sent and no end event is either.
	case ModeQuestionTransition:
		h.sink(types.ServerMessage{Type: types.EvQuestionTransition, Transition: false})
		h.sink(types.ServerMessage{Type: types.EvCountdownEnd})
	default:
		h.sink(types.ServerMessage{Type: types.EvCountdownEnd})
	}
	if h.onExpire != nil {
		h.onExpire()
	}
	e.log.Debug("countdown expired", zap.String("pin", h.pin), zap.String("mode", string(h.mode)))
}
