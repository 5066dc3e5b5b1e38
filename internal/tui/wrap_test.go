package tui

import (
	"strings"
	"testing"
)

func TestBuildScrambleRunesStylesByAxis(t *testing.T) {
	runes := buildScrambleRunes("R U2 F'")
	if len(runes) != 7 {
		t.Fatalf("expected 7 runes, got %d", len(runes))
	}
	if runes[0].s != moveXStyle.Render("R") {
		t.Fatalf("expected x-axis style for R")
	}
	if runes[3].s != moveYStyle.Render("2") {
		t.Fatalf("expected modifier to share the move's style")
	}
	if runes[6].s != moveZStyle.Render("'") {
		t.Fatalf("expected z-axis style for F'")
	}
	if !runes[1].isSpace || !runes[4].isSpace {
		t.Fatalf("expected separators between moves")
	}
}

func TestWrapKeepsMovesWhole(t *testing.T) {
	out := wrapStyledRunes(buildScrambleRunes("R U2 F'"), 4)
	want := moveXStyle.Render("R") + " " + moveYStyle.Render("U") + moveYStyle.Render("2") +
		"\n" + moveZStyle.Render("F") + moveZStyle.Render("'")
	if out != want {
		t.Fatalf("unexpected wrap:\n%q\nwant\n%q", out, want)
	}
}

func TestWrapBreaksAtLastSpace(t *testing.T) {
	out := wrapStyledRunes(buildScrambleRunes("R U D L B F R U D L"), 5)
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, " ") || strings.HasSuffix(line, " ") {
			t.Fatalf("line has dangling space: %q", line)
		}
	}
	if strings.Count(out, "\n") != 3 {
		t.Fatalf("expected 4 lines, got:\n%s", out)
	}
}

func TestWrapWithoutWidthRendersSingleLine(t *testing.T) {
	out := wrapStyledRunes(buildScrambleRunes("R U"), 0)
	if strings.Contains(out, "\n") {
		t.Fatalf("expected single line, got %q", out)
	}
}
