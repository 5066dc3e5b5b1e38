package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/cubetime/internal/config"
	"github.com/verte-zerg/cubetime/internal/generator"
	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/store"
	"github.com/verte-zerg/cubetime/internal/timer"
)

func isolateXDG(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedStore(t *testing.T, solves []model.Solve, sessions []model.Session) {
	t.Helper()
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() {
		_ = st.Close()
	}()
	ctx := context.Background()
	if err := st.SaveSolves(ctx, solves); err != nil {
		t.Fatalf("save solves: %v", err)
	}
	if err := st.SaveSessions(ctx, sessions); err != nil {
		t.Fatalf("save sessions: %v", err)
	}
}

func loadStore(t *testing.T) ([]model.Solve, []model.Session, string) {
	t.Helper()
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() {
		_ = st.Close()
	}()
	ctx := context.Background()
	return st.LoadSolves(ctx), st.LoadSessions(ctx), st.LoadActiveSession(ctx)
}

func TestScrambleSeedAppliesConfig(t *testing.T) {
	length := 30
	prime := false
	got := scrambleSeed(config.ScrambleConfig{
		Length:  &length,
		Prime:   &prime,
		Exclude: []string{" f", "B", "f"},
	})
	if got.Length != 30 || got.UsePrimeMoves || !got.UseDoubleMoves {
		t.Fatalf("unexpected settings: %+v", got)
	}
	if len(got.ExcludedMoves) != 2 || !got.IsExcluded("F") || !got.IsExcluded("B") {
		t.Fatalf("unexpected exclusions: %v", got.ExcludedMoves)
	}
}

func TestTimerConfigMsgOverlaysBase(t *testing.T) {
	inspection := 8
	puzzle := "skewb"
	base := timer.DefaultOptions()
	msg := timerConfigMsg(config.TimerConfig{Inspection: &inspection, Puzzle: &puzzle}, base)
	if msg.Options.InspectionSeconds != 8 || msg.Options.Lockout != base.Lockout {
		t.Fatalf("unexpected options: %+v", msg.Options)
	}
	if msg.Puzzle != model.PuzzleSkewb {
		t.Fatalf("expected Skewb, got %q", msg.Puzzle)
	}

	bad := "megaminx"
	msg = timerConfigMsg(config.TimerConfig{Puzzle: &bad}, base)
	if msg.Puzzle != "" {
		t.Fatalf("expected unknown puzzle to keep the current one, got %q", msg.Puzzle)
	}
}

func TestBuildFilter(t *testing.T) {
	filter, err := buildFilter("main", "2x2", "2026-01-02", 5)
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	if filter.SessionID != "main" || filter.Puzzle != model.Puzzle2x2 || filter.Last != 5 {
		t.Fatalf("unexpected filter: %+v", filter)
	}
	if filter.Since == nil || filter.Since.Day() != 2 {
		t.Fatalf("unexpected since: %v", filter.Since)
	}
	if _, err := buildFilter("", "", "yesterday", 0); err == nil {
		t.Fatalf("expected bad date to fail")
	}
	if _, err := buildFilter("", "", "", -1); err == nil {
		t.Fatalf("expected negative last to fail")
	}
}

func TestDefaultConfigTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if _, err := config.LoadConfig(path); err != nil {
		t.Fatalf("template should load: %v", err)
	}
}

func TestScrambleCommandIsReproducibleWithSeed(t *testing.T) {
	isolateXDG(t)
	first, err := execute(t, "scramble", "--seed", "7", "--count", "3", "--exclude", "F,B")
	if err != nil {
		t.Fatalf("scramble: %v", err)
	}
	second, err := execute(t, "scramble", "--seed", "7", "--count", "3", "--exclude", "F,B")
	if err != nil {
		t.Fatalf("scramble: %v", err)
	}
	if first != second {
		t.Fatalf("expected same output for the same seed:\n%s\n%s", first, second)
	}
	lines := strings.Split(strings.TrimSpace(first), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 scrambles, got %d", len(lines))
	}
	for _, move := range strings.Fields(lines[0]) {
		if face := generator.FaceOf(move); face == "F" || face == "B" {
			t.Fatalf("excluded face in %q", lines[0])
		}
	}
}

func TestScrambleCommandRejectsUnknownFace(t *testing.T) {
	isolateXDG(t)
	if _, err := execute(t, "scramble", "--puzzle", "pyraminx", "--exclude", "F"); err == nil {
		t.Fatalf("expected unknown face to fail")
	}
}

func TestSolvesPenaltyAndDelete(t *testing.T) {
	isolateXDG(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedStore(t, []model.Solve{
		{ID: "aaaa1111", RawTimeMs: 10000, FinalTimeMs: 10000, Penalty: model.PenaltyOK, Puzzle: model.Puzzle3x3, CreatedAt: base},
		{ID: "bbbb2222", RawTimeMs: 12000, FinalTimeMs: 12000, Penalty: model.PenaltyOK, Puzzle: model.Puzzle3x3, CreatedAt: base.Add(time.Minute)},
	}, []model.Session{{ID: "sess-1", Name: "Main", SolveIDs: []string{"aaaa1111", "bbbb2222"}}})

	out, err := execute(t, "solves", "penalty", "aaaa", "+2")
	if err != nil {
		t.Fatalf("penalty: %v", err)
	}
	if !strings.Contains(out, "12.000+") {
		t.Fatalf("unexpected output: %q", out)
	}
	solves, _, _ := loadStore(t)
	if solves[0].Penalty != model.PenaltyPlusTwo || solves[0].FinalTimeMs != 12000 {
		t.Fatalf("penalty not persisted: %+v", solves[0])
	}

	if _, err := execute(t, "solves", "delete", "bbbb"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	solves, sessions, _ := loadStore(t)
	if len(solves) != 1 || solves[0].ID != "aaaa1111" {
		t.Fatalf("expected bbbb2222 deleted, got %+v", solves)
	}
	if len(sessions) != 1 || strings.Join(sessions[0].SolveIDs, ",") != "aaaa1111" {
		t.Fatalf("expected session detached, got %+v", sessions)
	}

	if _, err := execute(t, "solves", "delete", "zzzz"); err == nil {
		t.Fatalf("expected unknown id to fail")
	}
}

func TestSessionsNewAndSelect(t *testing.T) {
	isolateXDG(t)
	if _, err := execute(t, "sessions", "new", "OH"); err != nil {
		t.Fatalf("new: %v", err)
	}
	_, sessions, active := loadStore(t)
	if len(sessions) != 1 || sessions[0].Name != "OH" || active != sessions[0].ID {
		t.Fatalf("expected OH active, got %+v active=%q", sessions, active)
	}

	out, err := execute(t, "sessions", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "*") || !strings.Contains(out, "OH") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	if _, err := execute(t, "sessions", "select", "none"); err != nil {
		t.Fatalf("select none: %v", err)
	}
	if _, _, active := loadStore(t); active != "" {
		t.Fatalf("expected no active session, got %q", active)
	}

	if _, err := execute(t, "sessions", "select", "OH"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, _, active := loadStore(t); active != sessions[0].ID {
		t.Fatalf("expected OH active again, got %q", active)
	}
}

func TestExportWritesFile(t *testing.T) {
	isolateXDG(t)
	seedStore(t, []model.Solve{
		{ID: "aaaa1111", RawTimeMs: 9000, FinalTimeMs: 9000, Penalty: model.PenaltyOK, Puzzle: model.Puzzle3x3},
	}, nil)
	path := filepath.Join(t.TempDir(), "solves.prom")
	if _, err := execute(t, "export", "--format", "prom", "--output", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(raw), "cubetime_solves") {
		t.Fatalf("unexpected export:\n%s", raw)
	}
}

func TestMutationsPersistOnEveryRun(t *testing.T) {
	isolateXDG(t)
	seedStore(t, []model.Solve{
		{ID: "aaaa1111", RawTimeMs: 10000, FinalTimeMs: 10000, Penalty: model.PenaltyOK, Puzzle: model.Puzzle3x3},
	}, []model.Session{{ID: "sess-1", Name: "Main", SolveIDs: []string{"aaaa1111"}}})

	penalties := []model.Penalty{model.PenaltyPlusTwo, model.PenaltyDNF, model.PenaltyOK}
	for i := 0; i < 30; i++ {
		want := penalties[i%len(penalties)]
		if _, err := execute(t, "solves", "penalty", "aaaa", string(want)); err != nil {
			t.Fatalf("penalty run %d: %v", i, err)
		}
		solves, _, _ := loadStore(t)
		if solves[0].Penalty != want {
			t.Fatalf("run %d: expected %s persisted, got %s", i, want, solves[0].Penalty)
		}

		ref, wantActive := "Main", "sess-1"
		if i%2 == 1 {
			ref, wantActive = "none", ""
		}
		if _, err := execute(t, "sessions", "select", ref); err != nil {
			t.Fatalf("select run %d: %v", i, err)
		}
		if _, _, active := loadStore(t); active != wantActive {
			t.Fatalf("run %d: expected active %q, got %q", i, wantActive, active)
		}
	}
}

func TestResetDeletesSelectedKeys(t *testing.T) {
	isolateXDG(t)
	seedStore(t, []model.Solve{
		{ID: "aaaa1111", RawTimeMs: 9000, FinalTimeMs: 9000, Penalty: model.PenaltyOK, Puzzle: model.Puzzle3x3},
	}, []model.Session{{ID: "sess-1", Name: "Main", SolveIDs: []string{"aaaa1111"}}})

	if _, err := execute(t, "reset", "--solves"); err == nil {
		t.Fatalf("expected reset without --yes to fail")
	}
	if solves, _, _ := loadStore(t); len(solves) != 1 {
		t.Fatalf("solves deleted without confirmation")
	}

	if _, err := execute(t, "reset", "--solves", "--yes"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	solves, sessions, _ := loadStore(t)
	if len(solves) != 0 {
		t.Fatalf("expected solves deleted, got %+v", solves)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected sessions kept, got %+v", sessions)
	}

	if _, err := execute(t, "reset", "--yes"); err != nil {
		t.Fatalf("reset all: %v", err)
	}
	if _, sessions, _ := loadStore(t); len(sessions) != 0 {
		t.Fatalf("expected sessions deleted, got %+v", sessions)
	}
}

func TestResetKeysDefaultsToEverything(t *testing.T) {
	got := strings.Join(resetKeys(false, false, false), ",")
	want := strings.Join([]string{store.KeySolves, store.KeySessions, store.KeyActiveSession, store.KeyScrambleSettings}, ",")
	if got != want {
		t.Fatalf("resetKeys() = %q, want %q", got, want)
	}
	if got := resetKeys(false, false, true); len(got) != 1 || got[0] != store.KeyScrambleSettings {
		t.Fatalf("unexpected keys: %v", got)
	}
}
