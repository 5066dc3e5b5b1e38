package stats

import (
	"context"
	"fmt"
	"strings"

	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/store"
)

// AllSessions labels a report that is not restricted to a session.
const AllSessions = "all"

// Report contains precomputed data for stats rendering.
type Report struct {
	SessionName string
	Solves      []model.Solve
	Summary     Summary
	Trend       []Value
	TrendWindow int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, filter model.StatsFilter) (Report, error) {
	solves := st.LoadSolves(ctx)
	sessions := st.LoadSessions(ctx)
	return NewReport(solves, sessions, filter)
}

// NewReport filters solves and computes every statistic over the result.
func NewReport(solves []model.Solve, sessions []model.Session, filter model.StatsFilter) (Report, error) {
	name := AllSessions
	if filter.SessionID != "" {
		sess, ok := findSession(sessions, filter.SessionID)
		if !ok {
			return Report{}, fmt.Errorf("unknown session %q", filter.SessionID)
		}
		name = sess.Name
		solves = SessionSolves(solves, sess)
	}

	filtered := make([]model.Solve, 0, len(solves))
	for _, s := range solves {
		if filter.Puzzle != "" && s.Puzzle != filter.Puzzle {
			continue
		}
		if filter.Since != nil && s.CreatedAt.Before(*filter.Since) {
			continue
		}
		filtered = append(filtered, s)
	}
	if filter.Last > 0 && len(filtered) > filter.Last {
		filtered = filtered[len(filtered)-filter.Last:]
	}

	window := filter.CurveWindow
	if window <= 0 {
		window = Ao5Window
	}
	return Report{
		SessionName: name,
		Solves:      filtered,
		Summary:     Compute(filtered),
		Trend:       RollingSeries(filtered, window),
		TrendWindow: window,
	}, nil
}

func findSession(sessions []model.Session, ref string) (model.Session, bool) {
	var prefixMatch []model.Session
	for _, s := range sessions {
		if s.ID == ref || strings.EqualFold(s.Name, ref) {
			return s, true
		}
		if strings.HasPrefix(s.ID, ref) {
			prefixMatch = append(prefixMatch, s)
		}
	}
	if len(prefixMatch) == 1 {
		return prefixMatch[0], true
	}
	return model.Session{}, false
}

// SessionSolves returns the solves referenced by sess, in history order.
func SessionSolves(solves []model.Solve, sess model.Session) []model.Solve {
	ids := make(map[string]struct{}, len(sess.SolveIDs))
	for _, id := range sess.SolveIDs {
		ids[id] = struct{}{}
	}
	out := make([]model.Solve, 0, len(sess.SolveIDs))
	for _, s := range solves {
		if _, ok := ids[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}
