// Package timer implements the solve timing protocol.
//
// The protocol is a reducer: Step takes the current State and one Event and
// returns the next State together with the side effects the caller must run.
// Machine runs those effects against a Clock and a Scheduler.
package timer

import (
	"time"

	"github.com/verte-zerg/cubetime/internal/model"
)

// Phase is the logical state of the timer.
type Phase int

// Phases. Visual readiness is tracked separately in State.Ready.
const (
	PhaseIdle Phase = iota
	PhaseInspection
	PhaseRunning
	PhaseLockout
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInspection:
		return "inspection"
	case PhaseRunning:
		return "running"
	case PhaseLockout:
		return "lockout"
	}
	return "unknown"
}

// Inspection thresholds, in seconds remaining. Both are inclusive.
const (
	DefaultInspectionSeconds = 15
	PlusTwoThreshold         = 0
	DNFThreshold             = -2
)

// EventKind identifies an input or scheduler event.
type EventKind int

// Event kinds.
const (
	EventPress EventKind = iota
	EventRelease
	EventTap
	EventInspectionTick
	EventFrame
	EventLockoutElapsed
	EventClockFault
)

func (k EventKind) String() string {
	switch k {
	case EventPress:
		return "press"
	case EventRelease:
		return "release"
	case EventTap:
		return "tap"
	case EventInspectionTick:
		return "inspection-tick"
	case EventFrame:
		return "frame"
	case EventLockoutElapsed:
		return "lockout-elapsed"
	case EventClockFault:
		return "clock-fault"
	}
	return "unknown"
}

// Event is one input to Step. At is the clock reading for the event and is
// only consulted when starting or stopping the run and on frames.
type Event struct {
	Kind EventKind
	At   time.Time
}

// State is the full timer state.
type State struct {
	Phase Phase
	// Ready is the visual READY affordance shown while the input is held.
	Ready          bool
	InspectionLeft int
	Penalty        model.Penalty
	StartedAt      time.Time
	// ElapsedMs is the last sampled running time, for display only.
	ElapsedMs int64
	// InspectionSeconds is the countdown start value; zero means the default.
	InspectionSeconds int
}

// EffectKind identifies a side effect requested by Step.
type EffectKind int

// Effect kinds.
const (
	EffectStartCountdown EffectKind = iota
	EffectStopCountdown
	EffectStartSampler
	EffectStopSampler
	EffectStartLockout
	EffectEmitSolve
	EffectNewScramble
)

// Effect is a side effect to run after a transition.
type Effect struct {
	Kind    EffectKind
	RawMs   int64
	Penalty model.Penalty
}

// NewState returns an idle state using the given inspection length.
func NewState(inspectionSeconds int) State {
	if inspectionSeconds <= 0 {
		inspectionSeconds = DefaultInspectionSeconds
	}
	return State{
		Phase:             PhaseIdle,
		Penalty:           model.PenaltyOK,
		InspectionLeft:    inspectionSeconds,
		InspectionSeconds: inspectionSeconds,
	}
}

// InspectionPenalty maps remaining inspection seconds to a penalty.
func InspectionPenalty(left int) model.Penalty {
	switch {
	case left <= DNFThreshold:
		return model.PenaltyDNF
	case left <= PlusTwoThreshold:
		return model.PenaltyPlusTwo
	}
	return model.PenaltyOK
}

// Step applies ev to s. It never mutates its input.
func Step(s State, ev Event) (State, []Effect) {
	if ev.Kind == EventClockFault {
		return abort(s)
	}
	switch s.Phase {
	case PhaseIdle:
		return stepIdle(s, ev)
	case PhaseInspection:
		return stepInspection(s, ev)
	case PhaseRunning:
		return stepRunning(s, ev)
	case PhaseLockout:
		if ev.Kind == EventLockoutElapsed {
			next := s
			next.Phase = PhaseIdle
			next.Ready = false
			return next, []Effect{{Kind: EffectNewScramble}}
		}
	}
	return s, nil
}

func stepIdle(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventPress:
		next := s
		next.Ready = true
		return next, nil
	case EventRelease:
		if !s.Ready {
			return s, nil
		}
		return startInspection(s)
	case EventTap:
		return startInspection(s)
	}
	return s, nil
}

func startInspection(s State) (State, []Effect) {
	next := s
	next.Phase = PhaseInspection
	next.Ready = false
	next.InspectionLeft = s.inspectionSeconds()
	next.Penalty = model.PenaltyOK
	next.StartedAt = time.Time{}
	next.ElapsedMs = 0
	return next, []Effect{{Kind: EffectStartCountdown}}
}

func stepInspection(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventInspectionTick:
		next := s
		next.InspectionLeft--
		next.Penalty = InspectionPenalty(next.InspectionLeft)
		return next, nil
	case EventPress:
		next := s
		next.Ready = true
		return next, nil
	case EventRelease, EventTap:
		next := s
		next.Phase = PhaseRunning
		next.Ready = false
		next.StartedAt = ev.At
		next.ElapsedMs = 0
		return next, []Effect{{Kind: EffectStopCountdown}, {Kind: EffectStartSampler}}
	}
	return s, nil
}

func stepRunning(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventFrame:
		next := s
		next.ElapsedMs = elapsedMs(s.StartedAt, ev.At)
		return next, nil
	case EventPress, EventRelease, EventTap:
		raw := elapsedMs(s.StartedAt, ev.At)
		next := s
		next.Phase = PhaseLockout
		next.Ready = false
		next.ElapsedMs = model.FinalTime(raw, s.Penalty)
		return next, []Effect{
			{Kind: EffectStopSampler},
			{Kind: EffectEmitSolve, RawMs: raw, Penalty: s.Penalty},
			{Kind: EffectStartLockout},
		}
	}
	return s, nil
}

func abort(s State) (State, []Effect) {
	var effects []Effect
	switch s.Phase {
	case PhaseInspection:
		effects = []Effect{{Kind: EffectStopCountdown}}
	case PhaseRunning:
		effects = []Effect{{Kind: EffectStopSampler}}
	default:
		return s, nil
	}
	next := s
	next.Phase = PhaseIdle
	next.Ready = false
	next.StartedAt = time.Time{}
	next.ElapsedMs = 0
	next.Penalty = model.PenaltyOK
	next.InspectionLeft = s.inspectionSeconds()
	return next, effects
}

func (s State) inspectionSeconds() int {
	if s.InspectionSeconds > 0 {
		return s.InspectionSeconds
	}
	return DefaultInspectionSeconds
}

func elapsedMs(start, end time.Time) int64 {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
