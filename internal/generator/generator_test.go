package generator

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/verte-zerg/cubetime/internal/model"
)

func TestGenerateNoAdjacentSameAxis(t *testing.T) {
	gen := NewWithSource(rand.NewSource(1), DefaultOptions())
	settings := model.ScrambleSettings{Length: 200, UseDoubleMoves: true, UsePrimeMoves: true}
	for trial := 0; trial < 10000; trial++ {
		moves := gen.Moves(model.Puzzle3x3, settings)
		if len(moves) != 200 {
			t.Fatalf("expected 200 moves, got %d", len(moves))
		}
		for i := 1; i < len(moves); i++ {
			prev := Axis(FaceOf(moves[i-1]))
			cur := Axis(FaceOf(moves[i]))
			if prev == cur {
				t.Fatalf("trial %d: moves %d and %d share axis %s: %v", trial, i-1, i, cur, moves)
			}
		}
	}
}

func TestGenerateRespectsExclusions(t *testing.T) {
	gen := NewWithSource(rand.NewSource(2), DefaultOptions())
	settings := model.ScrambleSettings{Length: 50, UsePrimeMoves: true, ExcludedMoves: []string{"F", "B", "D"}}
	for trial := 0; trial < 500; trial++ {
		for _, tok := range gen.Moves(model.Puzzle3x3, settings) {
			if settings.IsExcluded(FaceOf(tok)) {
				t.Fatalf("excluded face in token %q", tok)
			}
		}
	}
}

func TestGenerateAllExcludedReturnsEmpty(t *testing.T) {
	gen := NewWithSource(rand.NewSource(3), DefaultOptions())
	settings := model.ScrambleSettings{Length: 20, ExcludedMoves: []string{"R", "L", "U", "B"}}
	if got := gen.Generate(model.PuzzleSkewb, settings); got != "" {
		t.Fatalf("expected empty scramble, got %q", got)
	}
}

func TestGenerateSingleAxisTerminates(t *testing.T) {
	gen := NewWithSource(rand.NewSource(4), DefaultOptions())
	settings := model.ScrambleSettings{Length: 30, ExcludedMoves: []string{"U", "D", "F", "B"}}
	moves := gen.Moves(model.Puzzle3x3, settings)
	if len(moves) != 30 {
		t.Fatalf("expected 30 moves, got %d", len(moves))
	}
	for _, tok := range moves {
		if f := FaceOf(tok); f != "R" && f != "L" {
			t.Fatalf("unexpected face %q", f)
		}
	}
}

func TestEffectiveLengthUsesPuzzleFloor(t *testing.T) {
	gen := NewWithSource(rand.NewSource(5), DefaultOptions())
	cases := []struct {
		puzzle model.PuzzleType
		length int
		want   int
	}{
		{model.Puzzle2x2, 1, 9},
		{model.Puzzle3x3, 5, 20},
		{model.Puzzle3x3, 25, 25},
		{model.Puzzle5x5, 20, 60},
		{model.PuzzlePyraminx, 3, 10},
	}
	for _, tc := range cases {
		got := strings.Fields(gen.Generate(tc.puzzle, model.ScrambleSettings{Length: tc.length}))
		if len(got) != tc.want {
			t.Fatalf("%s length %d: expected %d moves, got %d", tc.puzzle, tc.length, tc.want, len(got))
		}
	}
}

func TestModifiersFollowSettings(t *testing.T) {
	gen := NewWithSource(rand.NewSource(6), DefaultOptions())
	plain := gen.Moves(model.Puzzle3x3, model.ScrambleSettings{Length: 100})
	for _, tok := range plain {
		if len(tok) != 1 {
			t.Fatalf("expected no modifiers, got %q", tok)
		}
	}

	primes := 0
	for _, tok := range gen.Moves(model.Puzzle3x3, model.ScrambleSettings{Length: 100, UsePrimeMoves: true}) {
		if strings.HasSuffix(tok, DoubleSuffix) {
			t.Fatalf("double move emitted while disabled: %q", tok)
		}
		if strings.HasSuffix(tok, PrimeSuffix) {
			primes++
		}
		if len(tok) > 2 {
			t.Fatalf("more than one modifier on %q", tok)
		}
	}
	if primes == 0 {
		t.Fatalf("expected some prime moves")
	}
}

func TestOffAxisFallbackWithSingleRetry(t *testing.T) {
	gen := NewWithSource(rand.NewSource(8), Options{MaxRetries: 1, Fallback: FallbackOffAxis})
	moves := gen.Moves(model.Puzzle3x3, model.ScrambleSettings{Length: 200})
	for i := 1; i < len(moves); i++ {
		if Axis(FaceOf(moves[i-1])) == Axis(FaceOf(moves[i])) {
			t.Fatalf("moves %d and %d share an axis: %v", i-1, i, moves)
		}
	}
}

func TestRetryCapFallbackAcceptsSameAxis(t *testing.T) {
	gen := NewWithSource(rand.NewSource(7), Options{MaxRetries: 1, Fallback: FallbackAcceptDraw})
	settings := model.ScrambleSettings{Length: 200}
	sameAxis := 0
	moves := gen.Moves(model.Puzzle3x3, settings)
	for i := 1; i < len(moves); i++ {
		if Axis(FaceOf(moves[i-1])) == Axis(FaceOf(moves[i])) {
			sameAxis++
		}
	}
	if sameAxis == 0 {
		t.Fatalf("expected single-draw policy to accept some same-axis moves")
	}
}
