package stats

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/verte-zerg/cubetime/internal/model"
)

const terminalWidthBackup = 80

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return terminalWidthBackup
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return terminalWidthBackup
	}
	return w
}

// RenderSummary prints the headline statistics.
func RenderSummary(w io.Writer, r Report) error {
	if len(r.Solves) == 0 {
		_, err := fmt.Fprintln(w, "No solves found.")
		return err
	}
	sum := r.Summary
	if _, err := fmt.Fprintf(w, "Summary (%s)\n", r.SessionName); err != nil {
		return err
	}
	rows := [][]string{
		{"Solves", strconv.Itoa(sum.Count)},
		{"DNF", strconv.Itoa(sum.DNFCount)},
		{"Best", sum.Best.String()},
		{"Worst", sum.Worst.String()},
		{"Mean", sum.Mean.String()},
		{"Std Dev", sum.StdDev.String()},
		{"Ao5", sum.Ao5.String()},
		{"Ao12", sum.Ao12.String()},
	}
	for _, line := range formatTable(nil, rows, map[int]bool{1: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderTrend prints a sparkline of the rolling average, fitted to width.
func RenderTrend(w io.Writer, r Report, width int) error {
	if len(r.Trend) == 0 {
		return nil
	}
	points := r.Trend
	if width > 0 && len(points) > width {
		points = points[len(points)-width:]
	}
	if _, err := fmt.Fprintf(w, "Ao%d trend (taller is faster)\n", r.TrendWindow); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, Sparkline(points)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderSolveTable prints the last limit solves, newest first.
func RenderSolveTable(w io.Writer, r Report, limit, width int, now time.Time) error {
	if len(r.Solves) == 0 {
		return nil
	}
	solves := r.Solves
	if limit > 0 && len(solves) > limit {
		solves = solves[len(solves)-limit:]
	}
	headers := []string{"#", "ID", "Puzzle", "Time", "Penalty", "When", "Scramble"}
	rows := make([][]string, 0, len(solves))
	offset := len(r.Solves) - len(solves)
	for i := len(solves) - 1; i >= 0; i-- {
		s := solves[i]
		rows = append(rows, []string{
			strconv.Itoa(offset + i + 1),
			shortID(s.ID),
			string(s.Puzzle),
			FormatSolve(s),
			string(s.Penalty),
			humanize.RelTime(s.CreatedAt, now, "ago", "from now"),
			s.Scramble,
		})
	}
	lines := formatTable(headers, rows, map[int]bool{0: true, 3: true})
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, truncateCell(line, width)); err != nil {
			return err
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderSessions prints one line per session with its solve count, best
// and current Ao5. The active session is marked with *.
func RenderSessions(w io.Writer, sessions []model.Session, solves []model.Solve, active string) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	headers := []string{"", "ID", "Name", "Solves", "Best", "Ao5"}
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		mark := ""
		if sess.ID == active {
			mark = "*"
		}
		sum := Compute(SessionSolves(solves, sess))
		rows = append(rows, []string{
			mark,
			shortID(sess.ID),
			sess.Name,
			strconv.Itoa(sum.Count),
			sum.Best.String(),
			sum.Ao5.String(),
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{3: true, 4: true, 5: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
