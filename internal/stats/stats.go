// Package stats contains solve statistics and reporting.
//
// Every metric returns a value and an ok flag; ok is false when the metric
// has no value (empty input, all DNF, DNF average, too few solves). Inputs
// are never modified.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/cubetime/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Conventional rolling windows.
const (
	Ao5Window  = 5
	Ao12Window = 12
)

// Summary bundles every metric for a solve sequence.
type Summary struct {
	Count    int
	DNFCount int
	Best     Value
	Worst    Value
	Mean     Value
	StdDev   Value
	Ao5      Value
	Ao12     Value
}

// Value is a metric that may be absent.
type Value struct {
	Ms float64
	OK bool
}

func value(ms float64, ok bool) Value {
	if !ok {
		return Value{}
	}
	return Value{Ms: ms, OK: true}
}

// String formats the value like the timer display.
func (v Value) String() string {
	return FormatTime(v.Ms, v.OK)
}

// EffectiveTime returns the solve's final time, or false for a DNF.
func EffectiveTime(s model.Solve) (float64, bool) {
	if s.Penalty == model.PenaltyDNF {
		return 0, false
	}
	return float64(s.FinalTimeMs), true
}

func validTimes(solves []model.Solve) []float64 {
	out := make([]float64, 0, len(solves))
	for _, s := range solves {
		if t, ok := EffectiveTime(s); ok {
			out = append(out, t)
		}
	}
	return out
}

// Best returns the fastest non-DNF time.
func Best(solves []model.Solve) (float64, bool) {
	times := validTimes(solves)
	if len(times) == 0 {
		return 0, false
	}
	best := times[0]
	for _, t := range times[1:] {
		if t < best {
			best = t
		}
	}
	return best, true
}

// Worst returns the slowest non-DNF time.
func Worst(solves []model.Solve) (float64, bool) {
	times := validTimes(solves)
	if len(times) == 0 {
		return 0, false
	}
	worst := times[0]
	for _, t := range times[1:] {
		if t > worst {
			worst = t
		}
	}
	return worst, true
}

// Mean returns the arithmetic mean of non-DNF times.
func Mean(solves []model.Solve) (float64, bool) {
	return mean(validTimes(solves))
}

func mean(times []float64) (float64, bool) {
	if len(times) == 0 {
		return 0, false
	}
	var sum float64
	for _, t := range times {
		sum += t
	}
	return sum / float64(len(times)), true
}

// StdDev returns the population standard deviation of non-DNF times.
func StdDev(solves []model.Solve) (float64, bool) {
	times := validTimes(solves)
	avg, ok := mean(times)
	if !ok {
		return 0, false
	}
	var variance float64
	for _, t := range times {
		variance += (t - avg) * (t - avg)
	}
	return math.Sqrt(variance / float64(len(times))), true
}

// AverageOf returns the trimmed mean of the last n solves.
//
// Two or more DNFs in the window make it a DNF average. Otherwise the single
// fastest and slowest numeric times are dropped and the rest are averaged; a
// single DNF in the window is simply not among the numeric times.
func AverageOf(solves []model.Solve, n int) (float64, bool) {
	if n <= 0 || len(solves) < n {
		return 0, false
	}
	window := solves[len(solves)-n:]
	numeric := make([]float64, 0, n)
	dnfs := 0
	for _, s := range window {
		t, ok := EffectiveTime(s)
		if !ok {
			dnfs++
			continue
		}
		numeric = append(numeric, t)
	}
	if dnfs >= 2 {
		return 0, false
	}
	if len(numeric) <= 2 {
		return 0, false
	}
	sort.Float64s(numeric)
	return mean(numeric[1 : len(numeric)-1])
}

// Ao5 is AverageOf(solves, 5).
func Ao5(solves []model.Solve) (float64, bool) {
	return AverageOf(solves, Ao5Window)
}

// Ao12 is AverageOf(solves, 12).
func Ao12(solves []model.Solve) (float64, bool) {
	return AverageOf(solves, Ao12Window)
}

// Compute evaluates every metric over solves.
func Compute(solves []model.Solve) Summary {
	sum := Summary{Count: len(solves)}
	for _, s := range solves {
		if s.Penalty == model.PenaltyDNF {
			sum.DNFCount++
		}
	}
	sum.Best = value(Best(solves))
	sum.Worst = value(Worst(solves))
	sum.Mean = value(Mean(solves))
	sum.StdDev = value(StdDev(solves))
	sum.Ao5 = value(Ao5(solves))
	sum.Ao12 = value(Ao12(solves))
	return sum
}

// RollingSeries returns AverageOf evaluated at every prefix of solves.
func RollingSeries(solves []model.Solve, n int) []Value {
	out := make([]Value, len(solves))
	for i := range solves {
		out[i] = value(AverageOf(solves[:i+1], n))
	}
	return out
}

// FormatTime renders milliseconds as s.mmm or m:ss.mmm, and DNF when !ok.
func FormatTime(ms float64, ok bool) string {
	if !ok {
		return "DNF"
	}
	if ms < 0 {
		ms = 0
	}
	total := int64(math.Round(ms))
	minutes := total / 60000
	seconds := (total / 1000) % 60
	millis := total % 1000
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, millis)
	}
	return fmt.Sprintf("%d.%03d", seconds, millis)
}

// FormatSolve renders a solve's result as shown in lists.
func FormatSolve(s model.Solve) string {
	t, ok := EffectiveTime(s)
	if !ok {
		return "DNF"
	}
	out := FormatTime(t, true)
	if s.Penalty == model.PenaltyPlusTwo {
		out += "+"
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline; absent values are blank.
func Sparkline(values []Value) string {
	if len(values) == 0 {
		return ""
	}
	first := true
	var minVal, maxVal float64
	for _, v := range values {
		if !v.OK {
			continue
		}
		if first {
			minVal, maxVal = v.Ms, v.Ms
			first = false
			continue
		}
		minVal = math.Min(minVal, v.Ms)
		maxVal = math.Max(maxVal, v.Ms)
	}
	if first {
		return strings.Repeat(" ", len(values))
	}
	var b strings.Builder
	for _, v := range values {
		if !v.OK {
			b.WriteByte(' ')
			continue
		}
		if math.Abs(maxVal-minVal) < 1e-9 {
			b.WriteByte(sparkChars[len(sparkChars)/2])
			continue
		}
		// Faster times draw taller.
		pos := (maxVal - v.Ms) / (maxVal - minVal)
		idx := int(math.Round(pos*float64(len(sparkChars)-2))) + 1
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}
