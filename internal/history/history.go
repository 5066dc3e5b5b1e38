// Package history keeps the solve list and sessions in memory and pushes
// every mutation to a persistence sink.
package history

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/stats"
)

// Lookup errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("ambiguous id prefix")
)

// Sink receives full snapshots after each mutation. Implementations must not block.
type Sink interface {
	SaveSolves([]model.Solve)
	SaveSessions([]model.Session)
	SaveActiveSession(string)
}

// History owns the solve records and sessions.
type History struct {
	solves   []model.Solve
	sessions []model.Session
	active   string
	sink     Sink
	summary  stats.Summary
	now      func() time.Time
}

// New builds a History from loaded state. A nil sink discards snapshots.
func New(solves []model.Solve, sessions []model.Session, activeSession string, sink Sink) *History {
	h := &History{
		solves:   append([]model.Solve(nil), solves...),
		sessions: append([]model.Session(nil), sessions...),
		sink:     sink,
		now:      time.Now,
	}
	if _, ok := h.session(activeSession); ok {
		h.active = activeSession
	}
	h.recompute()
	return h
}

// Add records a completed solve and attaches it to the active session.
// Missing ID and CreatedAt are filled in.
func (h *History) Add(s model.Solve) model.Solve {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = h.now()
	}
	if s.Penalty == "" {
		s.Penalty = model.PenaltyOK
	}
	s = s.WithPenalty(s.Penalty)
	h.solves = append(h.solves, s)
	if idx, ok := h.session(h.active); ok {
		sess := h.sessions[idx]
		sess.SolveIDs = append(append([]string(nil), sess.SolveIDs...), s.ID)
		h.sessions[idx] = sess
		h.saveSessions()
	}
	h.saveSolves()
	return s
}

// UpdatePenalty changes a solve's penalty. Unknown ids are a no-op and report false.
func (h *History) UpdatePenalty(id string, p model.Penalty) bool {
	for i := range h.solves {
		if h.solves[i].ID != id {
			continue
		}
		h.solves[i] = h.solves[i].WithPenalty(p)
		h.saveSolves()
		return true
	}
	return false
}

// Delete removes a solve and detaches it from every session.
func (h *History) Delete(id string) bool {
	idx := -1
	for i := range h.solves {
		if h.solves[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	h.solves = append(h.solves[:idx:idx], h.solves[idx+1:]...)

	detached := false
	for i, sess := range h.sessions {
		if !sess.Contains(id) {
			continue
		}
		kept := make([]string, 0, len(sess.SolveIDs))
		for _, sid := range sess.SolveIDs {
			if sid != id {
				kept = append(kept, sid)
			}
		}
		h.sessions[i].SolveIDs = kept
		detached = true
	}
	if detached {
		h.saveSessions()
	}
	h.saveSolves()
	return true
}

// CreateSession adds a named session and makes it active.
func (h *History) CreateSession(name string) (model.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Session{}, fmt.Errorf("session name must not be empty")
	}
	sess := model.Session{ID: uuid.New().String(), Name: name, SolveIDs: []string{}}
	h.sessions = append(h.sessions, sess)
	h.saveSessions()
	h.setActive(sess.ID)
	return sess, nil
}

// SelectSession makes id the active session; "" clears the selection.
func (h *History) SelectSession(id string) bool {
	if id != "" {
		if _, ok := h.session(id); !ok {
			return false
		}
	}
	h.setActive(id)
	return true
}

// CycleSession selects the next session in list order, wrapping through "no session".
func (h *History) CycleSession() {
	if len(h.sessions) == 0 {
		return
	}
	idx, ok := h.session(h.active)
	switch {
	case !ok:
		h.setActive(h.sessions[0].ID)
	case idx == len(h.sessions)-1:
		h.setActive("")
	default:
		h.setActive(h.sessions[idx+1].ID)
	}
}

// ActiveSession returns the selected session, if any.
func (h *History) ActiveSession() (model.Session, bool) {
	idx, ok := h.session(h.active)
	if !ok {
		return model.Session{}, false
	}
	return h.sessions[idx], true
}

// Solves returns a copy of every solve in chronological order.
func (h *History) Solves() []model.Solve {
	return append([]model.Solve(nil), h.solves...)
}

// Sessions returns a copy of the session list.
func (h *History) Sessions() []model.Session {
	return append([]model.Session(nil), h.sessions...)
}

// ActiveSolves returns the solves of the active session, or all solves when
// no session is selected.
func (h *History) ActiveSolves() []model.Solve {
	sess, ok := h.ActiveSession()
	if !ok {
		return h.Solves()
	}
	return stats.SessionSolves(h.solves, sess)
}

// Summary returns the statistics of ActiveSolves as of the last mutation.
func (h *History) Summary() stats.Summary {
	return h.summary
}

// Find resolves a full id or unique id prefix.
func (h *History) Find(prefix string) (model.Solve, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return model.Solve{}, fmt.Errorf("solve %q: %w", prefix, ErrNotFound)
	}
	var match *model.Solve
	for i := range h.solves {
		if h.solves[i].ID == prefix {
			return h.solves[i], nil
		}
		if !strings.HasPrefix(h.solves[i].ID, prefix) {
			continue
		}
		if match != nil {
			return model.Solve{}, fmt.Errorf("solve %q: %w", prefix, ErrAmbiguous)
		}
		match = &h.solves[i]
	}
	if match == nil {
		return model.Solve{}, fmt.Errorf("solve %q: %w", prefix, ErrNotFound)
	}
	return *match, nil
}

// FindSession resolves a session by id, id prefix or exact name.
func (h *History) FindSession(ref string) (model.Session, error) {
	ref = strings.TrimSpace(ref)
	var match *model.Session
	for i := range h.sessions {
		sess := &h.sessions[i]
		if sess.ID == ref || sess.Name == ref {
			return *sess, nil
		}
		if ref == "" || !strings.HasPrefix(sess.ID, ref) {
			continue
		}
		if match != nil {
			return model.Session{}, fmt.Errorf("session %q: %w", ref, ErrAmbiguous)
		}
		match = sess
	}
	if match == nil {
		return model.Session{}, fmt.Errorf("session %q: %w", ref, ErrNotFound)
	}
	return *match, nil
}

// session returns the index of the session with id. "" is never a session.
func (h *History) session(id string) (int, bool) {
	if id == "" {
		return -1, false
	}
	for i := range h.sessions {
		if h.sessions[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (h *History) recompute() {
	h.summary = stats.Compute(h.ActiveSolves())
}

func (h *History) setActive(id string) {
	h.active = id
	if h.sink != nil {
		h.sink.SaveActiveSession(id)
	}
	h.recompute()
}

func (h *History) saveSolves() {
	if h.sink != nil {
		h.sink.SaveSolves(append([]model.Solve(nil), h.solves...))
	}
	h.recompute()
}

func (h *History) saveSessions() {
	if h.sink != nil {
		sessions := make([]model.Session, len(h.sessions))
		for i, sess := range h.sessions {
			sess.SolveIDs = append([]string(nil), sess.SolveIDs...)
			sessions[i] = sess
		}
		h.sink.SaveSessions(sessions)
	}
	h.recompute()
}
