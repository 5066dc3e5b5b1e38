// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// PlusTwoMs is the time added to a solve with a +2 penalty.
const PlusTwoMs int64 = 2000

// Penalty is the competition penalty attached to a solve.
type Penalty string

// Penalty values.
const (
	PenaltyOK      Penalty = "OK"
	PenaltyPlusTwo Penalty = "+2"
	PenaltyDNF     Penalty = "DNF"
)

// ParsePenalty accepts OK, +2 (or plus2) and DNF, case-insensitively.
func ParsePenalty(s string) (Penalty, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OK", "":
		return PenaltyOK, nil
	case "+2", "PLUS2", "PLUS_TWO":
		return PenaltyPlusTwo, nil
	case "DNF":
		return PenaltyDNF, nil
	}
	return "", fmt.Errorf("unknown penalty %q (expected OK, +2 or DNF)", s)
}

// PuzzleType identifies a puzzle category.
type PuzzleType string

// Supported puzzles.
const (
	Puzzle2x2      PuzzleType = "2x2"
	Puzzle3x3      PuzzleType = "3x3"
	Puzzle4x4      PuzzleType = "4x4"
	Puzzle5x5      PuzzleType = "5x5"
	PuzzlePyraminx PuzzleType = "Pyraminx"
	PuzzleSkewb    PuzzleType = "Skewb"
)

// Puzzles lists every supported puzzle in display order.
var Puzzles = []PuzzleType{Puzzle2x2, Puzzle3x3, Puzzle4x4, Puzzle5x5, PuzzlePyraminx, PuzzleSkewb}

// ParsePuzzle resolves a puzzle name case-insensitively.
func ParsePuzzle(s string) (PuzzleType, error) {
	name := strings.TrimSpace(s)
	for _, p := range Puzzles {
		if strings.EqualFold(string(p), name) {
			return p, nil
		}
	}
	names := make([]string, len(Puzzles))
	for i, p := range Puzzles {
		names[i] = string(p)
	}
	return "", fmt.Errorf("unknown puzzle %q (available: %s)", s, strings.Join(names, ", "))
}

// Solve is a completed, timed attempt.
type Solve struct {
	ID          string     `json:"id" yaml:"id"`
	RawTimeMs   int64      `json:"timeMs" yaml:"time_ms"`
	FinalTimeMs int64      `json:"finalTimeMs" yaml:"final_time_ms"`
	Penalty     Penalty    `json:"penalty" yaml:"penalty"`
	Puzzle      PuzzleType `json:"puzzle" yaml:"puzzle"`
	Scramble    string     `json:"scramble" yaml:"scramble"`
	CreatedAt   time.Time  `json:"timestamp" yaml:"created_at"`
}

// FinalTime applies a penalty to a raw time.
func FinalTime(rawMs int64, p Penalty) int64 {
	if p == PenaltyPlusTwo {
		return rawMs + PlusTwoMs
	}
	return rawMs
}

// WithPenalty returns a copy of s carrying p with FinalTimeMs recomputed.
func (s Solve) WithPenalty(p Penalty) Solve {
	s.Penalty = p
	s.FinalTimeMs = FinalTime(s.RawTimeMs, p)
	return s
}

// ScrambleSettings controls scramble generation.
type ScrambleSettings struct {
	Length         int      `json:"length"`
	UseDoubleMoves bool     `json:"useDoubleMoves"`
	UsePrimeMoves  bool     `json:"usePrimeMoves"`
	ExcludedMoves  []string `json:"excludedMoves"`
}

// Scramble length bounds accepted from user edits.
const (
	MinScrambleLength = 1
	MaxScrambleLength = 100
)

// DefaultScrambleSettings returns the settings used when nothing is stored.
func DefaultScrambleSettings() ScrambleSettings {
	return ScrambleSettings{
		Length:         20,
		UseDoubleMoves: true,
		UsePrimeMoves:  true,
		ExcludedMoves:  []string{},
	}
}

// IsExcluded reports whether face is in the exclusion set.
func (s ScrambleSettings) IsExcluded(face string) bool {
	for _, m := range s.ExcludedMoves {
		if m == face {
			return true
		}
	}
	return false
}

// ToggleExcluded returns a copy of s with face added to or removed from the exclusion set.
func (s ScrambleSettings) ToggleExcluded(face string) ScrambleSettings {
	out := make([]string, 0, len(s.ExcludedMoves)+1)
	found := false
	for _, m := range s.ExcludedMoves {
		if m == face {
			found = true
			continue
		}
		out = append(out, m)
	}
	if !found {
		out = append(out, face)
	}
	s.ExcludedMoves = out
	return s
}

// WithLength returns a copy of s with Length clamped to the accepted range.
func (s ScrambleSettings) WithLength(n int) ScrambleSettings {
	if n < MinScrambleLength {
		n = MinScrambleLength
	}
	if n > MaxScrambleLength {
		n = MaxScrambleLength
	}
	s.Length = n
	return s
}

// Session groups solves by reference.
type Session struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	SolveIDs []string `json:"solves" yaml:"solves"`
}

// Contains reports whether the session references solveID.
func (s Session) Contains(solveID string) bool {
	for _, id := range s.SolveIDs {
		if id == solveID {
			return true
		}
	}
	return false
}

// StatsFilter selects solves for reporting.
type StatsFilter struct {
	SessionID   string
	Puzzle      PuzzleType
	Since       *time.Time
	Last        int
	CurveWindow int
}
