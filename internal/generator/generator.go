// Package generator builds scramble move sequences.
package generator

import (
	"math/rand"
	"strings"
	"time"

	"github.com/verte-zerg/cubetime/internal/model"
)

const (
	// DefaultMaxRetries bounds the redraws spent looking for a face on a new axis.
	DefaultMaxRetries = 10
	// DefaultModifierProb is the chance of each enabled modifier being applied.
	DefaultModifierProb = 0.33
)

// Move modifiers.
const (
	PrimeSuffix  = "'"
	DoubleSuffix = "2"
)

var (
	cubeFaces   = []string{"R", "L", "U", "D", "F", "B"}
	cornerFaces = []string{"R", "L", "U", "B"}

	axisOf = map[string]string{
		"R": "x", "L": "x",
		"U": "y", "D": "y",
		"F": "z", "B": "z",
	}

	minLengths = map[model.PuzzleType]int{
		model.Puzzle2x2:      9,
		model.Puzzle3x3:      20,
		model.Puzzle4x4:      40,
		model.Puzzle5x5:      60,
		model.PuzzlePyraminx: 10,
		model.PuzzleSkewb:    10,
	}
)

// Fallback decides what happens when MaxRetries draws all land on the
// previous move's axis.
type Fallback int

const (
	// FallbackOffAxis picks uniformly among the allowed faces on other axes,
	// and only repeats the axis when no such face exists.
	FallbackOffAxis Fallback = iota
	// FallbackAcceptDraw keeps the last same-axis draw.
	FallbackAcceptDraw
)

// Options tunes the retry cap, fallback policy and modifier probability.
type Options struct {
	MaxRetries   int
	Fallback     Fallback
	ModifierProb float64
}

// DefaultOptions returns the standard generator tuning.
func DefaultOptions() Options {
	return Options{MaxRetries: DefaultMaxRetries, Fallback: FallbackOffAxis, ModifierProb: DefaultModifierProb}
}

// Generator produces randomized scrambles.
type Generator struct {
	rnd  *rand.Rand
	opts Options
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSource(rand.NewSource(time.Now().UnixNano()), DefaultOptions())
}

// NewWithSource returns a Generator drawing from src.
func NewWithSource(src rand.Source, opts Options) *Generator {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.ModifierProb < 0 {
		opts.ModifierProb = 0
	}
	return &Generator{rnd: rand.New(src), opts: opts}
}

// Faces returns the base move set for a puzzle.
func Faces(p model.PuzzleType) []string {
	switch p {
	case model.PuzzlePyraminx, model.PuzzleSkewb:
		return append([]string(nil), cornerFaces...)
	default:
		return append([]string(nil), cubeFaces...)
	}
}

// Axis returns the axis a face turns around, or "" for unknown faces.
func Axis(face string) string {
	return axisOf[face]
}

// MinLength returns the puzzle's length floor.
func MinLength(p model.PuzzleType) int {
	return minLengths[p]
}

// EffectiveLength is the number of moves generated for settings on p.
func EffectiveLength(p model.PuzzleType, settings model.ScrambleSettings) int {
	n := settings.Length
	if floor := MinLength(p); floor > n {
		n = floor
	}
	return n
}

// FaceOf strips modifiers from a move token.
func FaceOf(token string) string {
	token = strings.TrimSuffix(token, PrimeSuffix)
	return strings.TrimSuffix(token, DoubleSuffix)
}

// Generate returns a space-separated scramble.
func (g *Generator) Generate(p model.PuzzleType, settings model.ScrambleSettings) string {
	return strings.Join(g.Moves(p, settings), " ")
}

// Moves returns the scramble as individual move tokens. It is empty when
// every face of the puzzle is excluded.
func (g *Generator) Moves(p model.PuzzleType, settings model.ScrambleSettings) []string {
	allowed := allowedFaces(Faces(p), settings)
	if len(allowed) == 0 {
		return nil
	}
	length := EffectiveLength(p, settings)
	moves := make([]string, 0, length)
	lastAxis := ""
	for i := 0; i < length; i++ {
		face := g.drawFace(allowed, lastAxis)
		lastAxis = Axis(face)
		moves = append(moves, face+g.modifier(settings))
	}
	return moves
}

func (g *Generator) drawFace(allowed []string, lastAxis string) string {
	var face string
	for try := 0; try < g.opts.MaxRetries; try++ {
		face = allowed[g.rnd.Intn(len(allowed))]
		if lastAxis == "" || Axis(face) != lastAxis {
			return face
		}
	}
	if g.opts.Fallback == FallbackAcceptDraw {
		return face
	}
	offAxis := make([]string, 0, len(allowed))
	for _, f := range allowed {
		if Axis(f) != lastAxis {
			offAxis = append(offAxis, f)
		}
	}
	if len(offAxis) == 0 {
		return face
	}
	return offAxis[g.rnd.Intn(len(offAxis))]
}

func (g *Generator) modifier(settings model.ScrambleSettings) string {
	if settings.UsePrimeMoves && g.rnd.Float64() < g.opts.ModifierProb {
		return PrimeSuffix
	}
	if settings.UseDoubleMoves && g.rnd.Float64() < g.opts.ModifierProb {
		return DoubleSuffix
	}
	return ""
}

func allowedFaces(faces []string, settings model.ScrambleSettings) []string {
	out := make([]string, 0, len(faces))
	for _, f := range faces {
		if settings.IsExcluded(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
