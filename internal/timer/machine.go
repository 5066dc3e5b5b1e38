package timer

import (
	"log/slog"
	"time"

	"github.com/verte-zerg/cubetime/internal/model"
)

// Default timings.
const (
	DefaultLockout       = 150 * time.Millisecond
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultTickInterval  = time.Second
)

// Options configures a Machine.
type Options struct {
	InspectionSeconds int
	Lockout           time.Duration
	FrameInterval     time.Duration
	TickInterval      time.Duration
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		InspectionSeconds: DefaultInspectionSeconds,
		Lockout:           DefaultLockout,
		FrameInterval:     DefaultFrameInterval,
		TickInterval:      DefaultTickInterval,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.InspectionSeconds <= 0 {
		o.InspectionSeconds = def.InspectionSeconds
	}
	if o.Lockout <= 0 {
		o.Lockout = def.Lockout
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = def.FrameInterval
	}
	if o.TickInterval <= 0 {
		o.TickInterval = def.TickInterval
	}
	return o
}

// Result is a completed measurement.
type Result struct {
	RawMs   int64
	FinalMs int64
	Penalty model.Penalty
}

// Callbacks receive Machine output. Nil callbacks are skipped.
type Callbacks struct {
	OnSolve    func(Result)
	OnScramble func()
	OnChange   func(State)
}

type source int

const (
	sourceCountdown source = iota
	sourceSampler
	sourceLockout
	sourceCount
)

type handle struct {
	cancel Cancel
	gen    uint64
}

// Machine drives Step with real clock readings and owns the scheduled
// sources each phase starts. It is not safe for concurrent use; every method
// and every scheduler callback must run on one goroutine.
type Machine struct {
	state   State
	clock   Clock
	sched   Scheduler
	opts    Options
	cb      Callbacks
	handles [sourceCount]handle
	gen     uint64
}

// NewMachine returns an idle Machine.
func NewMachine(clock Clock, sched Scheduler, opts Options, cb Callbacks) *Machine {
	opts = opts.withDefaults()
	return &Machine{
		state: NewState(opts.InspectionSeconds),
		clock: clock,
		sched: sched,
		opts:  opts,
		cb:    cb,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// SetOptions replaces the timings. Sources already running keep their
// interval; the new values apply from the next time a source starts.
func (m *Machine) SetOptions(opts Options) {
	opts = opts.withDefaults()
	m.opts = opts
	if m.state.Phase == PhaseIdle {
		m.state.InspectionSeconds = opts.InspectionSeconds
		m.state.InspectionLeft = opts.InspectionSeconds
	}
}

// Press handles the primary input going down.
func (m *Machine) Press() {
	m.input(EventPress)
}

// Release handles the primary input going up.
func (m *Machine) Release() {
	m.input(EventRelease)
}

// Tap handles a single touch-style gesture.
func (m *Machine) Tap() {
	m.input(EventTap)
}

// Stop cancels every scheduled source and returns to idle without
// recording anything.
func (m *Machine) Stop() {
	for src := source(0); src < sourceCount; src++ {
		m.release(src)
	}
	m.state = NewState(m.opts.InspectionSeconds)
	m.notify()
}

func (m *Machine) input(kind EventKind) {
	ev := Event{Kind: kind}
	if m.needsClock() {
		at, err := m.clock.Now()
		if err != nil {
			slog.Warn("timer: clock unavailable, discarding attempt", "phase", m.state.Phase.String(), "err", err)
			m.dispatch(Event{Kind: EventClockFault})
			return
		}
		ev.At = at
	}
	m.dispatch(ev)
}

func (m *Machine) needsClock() bool {
	return m.state.Phase == PhaseInspection || m.state.Phase == PhaseRunning
}

func (m *Machine) dispatch(ev Event) {
	prev := m.state
	next, effects := Step(prev, ev)
	m.state = next
	if prev.Phase != next.Phase {
		m.exit(prev.Phase)
	}
	for _, eff := range effects {
		m.run(eff)
	}
	if next != prev {
		m.notify()
	}
}

// exit releases whatever the left phase owned, whether or not Step asked for it.
func (m *Machine) exit(p Phase) {
	switch p {
	case PhaseInspection:
		m.release(sourceCountdown)
	case PhaseRunning:
		m.release(sourceSampler)
	case PhaseLockout:
		m.release(sourceLockout)
	}
}

func (m *Machine) run(eff Effect) {
	switch eff.Kind {
	case EffectStartCountdown:
		m.start(sourceCountdown, func(gen uint64) Cancel {
			return m.sched.Every(m.opts.TickInterval, m.guard(sourceCountdown, gen, func() {
				m.dispatch(Event{Kind: EventInspectionTick})
			}))
		})
	case EffectStopCountdown:
		m.release(sourceCountdown)
	case EffectStartSampler:
		m.start(sourceSampler, func(gen uint64) Cancel {
			return m.sched.Every(m.opts.FrameInterval, m.guard(sourceSampler, gen, m.frame))
		})
	case EffectStopSampler:
		m.release(sourceSampler)
	case EffectStartLockout:
		m.start(sourceLockout, func(gen uint64) Cancel {
			return m.sched.After(m.opts.Lockout, m.guard(sourceLockout, gen, func() {
				m.dispatch(Event{Kind: EventLockoutElapsed})
			}))
		})
	case EffectEmitSolve:
		if m.cb.OnSolve != nil {
			m.cb.OnSolve(Result{
				RawMs:   eff.RawMs,
				FinalMs: model.FinalTime(eff.RawMs, eff.Penalty),
				Penalty: eff.Penalty,
			})
		}
	case EffectNewScramble:
		if m.cb.OnScramble != nil {
			m.cb.OnScramble()
		}
	}
}

func (m *Machine) frame() {
	at, err := m.clock.Now()
	if err != nil {
		slog.Warn("timer: clock unavailable during run, discarding attempt", "err", err)
		m.dispatch(Event{Kind: EventClockFault})
		return
	}
	m.dispatch(Event{Kind: EventFrame, At: at})
}

func (m *Machine) start(src source, schedule func(gen uint64) Cancel) {
	m.release(src)
	m.gen++
	gen := m.gen
	m.handles[src] = handle{gen: gen}
	m.handles[src].cancel = schedule(gen)
}

func (m *Machine) release(src source) {
	h := m.handles[src]
	m.handles[src] = handle{}
	if h.cancel != nil {
		h.cancel()
	}
}

// guard drops deliveries from a source that has since been released or restarted.
func (m *Machine) guard(src source, gen uint64, fn func()) func() {
	return func() {
		if m.handles[src].gen != gen {
			return
		}
		fn()
	}
}

func (m *Machine) notify() {
	if m.cb.OnChange != nil {
		m.cb.OnChange(m.state)
	}
}
