package tui

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/cubetime/internal/generator"
	"github.com/verte-zerg/cubetime/internal/history"
	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/timer"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() (time.Time, error) {
	return c.now, nil
}

type manualScheduler struct {
	after []func()
}

func (s *manualScheduler) Every(time.Duration, func()) timer.Cancel {
	return func() {}
}

func (s *manualScheduler) After(_ time.Duration, fn func()) timer.Cancel {
	s.after = append(s.after, fn)
	return func() {}
}

type settingsRecorder struct {
	saved []model.ScrambleSettings
}

func (r *settingsRecorder) SaveScrambleSettings(s model.ScrambleSettings) {
	r.saved = append(r.saved, s)
}

type testRig struct {
	m     *Model
	hist  *history.History
	clock *fakeClock
	sched *manualScheduler
	sink  *settingsRecorder
}

func newTestRig(t *testing.T, solves []model.Solve) *testRig {
	t.Helper()
	rig := &testRig{
		hist:  history.New(solves, nil, "", nil),
		clock: &fakeClock{now: time.Unix(1000, 0)},
		sched: &manualScheduler{},
		sink:  &settingsRecorder{},
	}
	rig.m = NewModel(Deps{
		History:   rig.hist,
		Settings:  rig.sink,
		Generator: generator.NewWithSource(rand.NewSource(1), generator.DefaultOptions()),
		Clock:     rig.clock,
		Scheduler: rig.sched,
		Puzzle:    model.Puzzle3x3,
		Scramble:  model.DefaultScrambleSettings(),
	})
	return rig
}

func (r *testRig) key(msg tea.KeyMsg) {
	r.m.Update(msg)
}

func (r *testRig) runes(s string) {
	r.key(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (r *testRig) space() {
	r.key(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
}

func (r *testRig) phase() timer.Phase {
	return r.m.machine.State().Phase
}

func TestSpaceRunsFullSolve(t *testing.T) {
	rig := newTestRig(t, nil)
	scramble := rig.m.scramble

	rig.space()
	if rig.phase() != timer.PhaseInspection {
		t.Fatalf("expected inspection, got %s", rig.phase())
	}
	rig.clock.now = rig.clock.now.Add(3 * time.Second)
	rig.space()
	if rig.phase() != timer.PhaseRunning {
		t.Fatalf("expected running, got %s", rig.phase())
	}
	rig.clock.now = rig.clock.now.Add(12345 * time.Millisecond)
	rig.space()
	if rig.phase() != timer.PhaseLockout {
		t.Fatalf("expected lockout, got %s", rig.phase())
	}

	solves := rig.hist.Solves()
	if len(solves) != 1 {
		t.Fatalf("expected 1 solve, got %d", len(solves))
	}
	s := solves[0]
	if s.RawTimeMs != 12345 || s.FinalTimeMs != 12345 || s.Penalty != model.PenaltyOK {
		t.Fatalf("unexpected solve: %+v", s)
	}
	if s.Scramble != scramble || s.Puzzle != model.Puzzle3x3 {
		t.Fatalf("solve should keep the scramble it was timed with: %+v", s)
	}
	if len(rig.m.rowIDs) != 1 || rig.m.rowIDs[0] != s.ID {
		t.Fatalf("expected solve list to show the new solve, got %v", rig.m.rowIDs)
	}
	if got := rig.m.renderTimer(); !strings.Contains(got, "12.345") {
		t.Fatalf("expected result on display, got %q", got)
	}

	// Input during lockout is ignored.
	rig.space()
	if rig.phase() != timer.PhaseLockout {
		t.Fatalf("expected lockout to hold, got %s", rig.phase())
	}

	if len(rig.sched.after) != 1 {
		t.Fatalf("expected one lockout timer, got %d", len(rig.sched.after))
	}
	rig.m.Update(callbackMsg{fn: rig.sched.after[0]})
	if rig.phase() != timer.PhaseIdle {
		t.Fatalf("expected idle after lockout, got %s", rig.phase())
	}
	if rig.m.scramble == scramble {
		t.Fatalf("expected a new scramble after lockout")
	}
}

func TestIdleKeysIgnoredWhileTiming(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.space()
	rig.runes("p")
	rig.runes("n")
	if len(rig.sink.saved) != 0 {
		t.Fatalf("settings must not change during inspection")
	}
	if !rig.m.scrambleCfg.UsePrimeMoves {
		t.Fatalf("prime toggle applied during inspection")
	}
}

func TestSettingsKeysPersist(t *testing.T) {
	rig := newTestRig(t, nil)
	before := rig.m.scramble

	rig.runes("p")
	rig.runes("1")
	rig.runes("]")
	if len(rig.sink.saved) != 3 {
		t.Fatalf("expected 3 saves, got %d", len(rig.sink.saved))
	}
	last := rig.sink.saved[2]
	if last.UsePrimeMoves {
		t.Fatalf("expected prime moves off")
	}
	if !last.IsExcluded("R") {
		t.Fatalf("expected R excluded, got %v", last.ExcludedMoves)
	}
	if last.Length != 21 {
		t.Fatalf("expected length 21, got %d", last.Length)
	}
	if rig.m.scramble == before {
		t.Fatalf("expected settings change to redraw the scramble")
	}
	for _, move := range strings.Fields(rig.m.scramble) {
		if generator.FaceOf(move) == "R" || strings.HasSuffix(move, "'") {
			t.Fatalf("scramble ignores settings: %q", rig.m.scramble)
		}
	}
}

func TestTabCyclesPuzzle(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.key(tea.KeyMsg{Type: tea.KeyTab})
	if rig.m.puzzle != model.Puzzle4x4 {
		t.Fatalf("expected 4x4, got %s", rig.m.puzzle)
	}
	if n := len(strings.Fields(rig.m.scramble)); n != 40 {
		t.Fatalf("expected 40 moves for 4x4, got %d", n)
	}
}

func TestPenaltyAndDeleteEditSelectedSolve(t *testing.T) {
	base := time.Unix(2000, 0)
	rig := newTestRig(t, []model.Solve{
		{ID: "a", RawTimeMs: 10000, FinalTimeMs: 10000, Penalty: model.PenaltyOK, CreatedAt: base},
		{ID: "b", RawTimeMs: 11000, FinalTimeMs: 11000, Penalty: model.PenaltyOK, CreatedAt: base.Add(time.Minute)},
	})
	if strings.Join(rig.m.rowIDs, ",") != "b,a" {
		t.Fatalf("expected newest first, got %v", rig.m.rowIDs)
	}

	rig.runes("+")
	s, err := rig.hist.Find("b")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if s.Penalty != model.PenaltyPlusTwo || s.FinalTimeMs != 13000 {
		t.Fatalf("unexpected solve after +2: %+v", s)
	}

	rig.runes("x")
	rig.runes("o")
	s, _ = rig.hist.Find("b")
	if s.Penalty != model.PenaltyOK || s.FinalTimeMs != 11000 {
		t.Fatalf("unexpected solve after reset: %+v", s)
	}

	rig.key(tea.KeyMsg{Type: tea.KeyDelete})
	if len(rig.hist.Solves()) != 1 || strings.Join(rig.m.rowIDs, ",") != "a" {
		t.Fatalf("expected b deleted, rows=%v", rig.m.rowIDs)
	}
}

func TestCreateSessionPrompt(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.runes("N")
	if !rig.m.naming {
		t.Fatalf("expected naming prompt")
	}
	rig.key(tea.KeyMsg{Type: tea.KeyEnter})
	if !rig.m.naming || rig.m.status == "" {
		t.Fatalf("expected empty name to be rejected")
	}
	rig.runes("Main")
	rig.key(tea.KeyMsg{Type: tea.KeyEnter})
	if rig.m.naming {
		t.Fatalf("expected prompt to close")
	}
	sess, ok := rig.hist.ActiveSession()
	if !ok || sess.Name != "Main" {
		t.Fatalf("expected active session Main, got %+v (%v)", sess, ok)
	}
	if !strings.Contains(rig.m.renderHeader(), "session: Main") {
		t.Fatalf("unexpected header: %q", rig.m.renderHeader())
	}
}

func TestTimerConfigMsgSwitchesPuzzleWhenIdle(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.m.Update(TimerConfigMsg{Puzzle: model.PuzzleSkewb, Options: timer.Options{InspectionSeconds: 8}})
	if rig.m.puzzle != model.PuzzleSkewb {
		t.Fatalf("expected Skewb, got %s", rig.m.puzzle)
	}
	for _, move := range strings.Fields(rig.m.scramble) {
		if face := generator.FaceOf(move); face == "D" || face == "F" {
			t.Fatalf("unexpected face %q in Skewb scramble", face)
		}
	}
	rig.space()
	if left := rig.m.machine.State().InspectionLeft; left != 8 {
		t.Fatalf("expected 8s inspection, got %d", left)
	}
}

func TestRenderStatsAndFooter(t *testing.T) {
	rig := newTestRig(t, []model.Solve{
		{ID: "a", RawTimeMs: 9000, FinalTimeMs: 9000, Penalty: model.PenaltyOK, Puzzle: model.Puzzle3x3},
		{ID: "b", RawTimeMs: 9000, FinalTimeMs: 11000, Penalty: model.PenaltyPlusTwo, Puzzle: model.Puzzle2x2},
	})
	statsLine := rig.m.renderStats()
	want := []string{"Solves 2", "Best 9.000", "Worst 11.000", "Mean 10.000", "StdDev 1.000"}
	if !containsAll(statsLine, want) {
		t.Fatalf("stats line missing expected segments: %s", statsLine)
	}
	rows := rig.m.solveTable.Rows()
	if len(rows) != 2 || rows[0][1] != "11.000+" || rows[0][2] != "+2" || rows[0][3] != "2x2" {
		t.Fatalf("unexpected newest row: %v", rows)
	}
	if rows[1][2] != "OK" || rows[1][3] != "3x3" {
		t.Fatalf("unexpected oldest row: %v", rows[1])
	}
	footer := rig.m.renderFooter()
	if !containsAll(footer, []string{"Length 20", "Prime on", "Double on", "Excluded none"}) {
		t.Fatalf("footer missing expected segments: %s", footer)
	}
}

func TestFormatInspection(t *testing.T) {
	cases := map[int]string{15: "15", 1: "1", 0: "+0", -1: "+1"}
	for left, want := range cases {
		if got := formatInspection(left); got != want {
			t.Fatalf("formatInspection(%d) = %q, want %q", left, got, want)
		}
	}
	if inspectionStyle(9).Render("x") != inspectOKStyle.Render("x") {
		t.Fatalf("expected ok style above 8s")
	}
	if inspectionStyle(8).Render("x") != inspectWarnStyle.Render("x") {
		t.Fatalf("expected warn style at 8s")
	}
	if inspectionStyle(0).Render("x") != inspectLateStyle.Render("x") {
		t.Fatalf("expected late style at 0s")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
