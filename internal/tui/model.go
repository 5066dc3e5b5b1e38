// Package tui provides the Bubble Tea timer interface.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/cubetime/internal/generator"
	"github.com/verte-zerg/cubetime/internal/history"
	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/stats"
	"github.com/verte-zerg/cubetime/internal/timer"
)

const (
	inspectionWarnSeconds = 8
	solveTableHeight      = 8
)

// SettingsSink persists scramble settings.
type SettingsSink interface {
	SaveScrambleSettings(model.ScrambleSettings)
}

// Deps wires the timer screen to its collaborators. Clock and Scheduler are
// optional; by default the system clock is used and callbacks are delivered
// through the Bubble Tea program.
type Deps struct {
	History     *history.History
	Settings    SettingsSink
	Generator   *generator.Generator
	Clock       timer.Clock
	Scheduler   timer.Scheduler
	Timer       timer.Options
	Puzzle      model.PuzzleType
	Scramble    model.ScrambleSettings
	CurveWindow int
}

// Model implements the Bubble Tea timer UI.
type Model struct {
	hist     *history.History
	settings SettingsSink
	gen      *generator.Generator
	machine  *timer.Machine
	send     func(tea.Msg)

	puzzle      model.PuzzleType
	scrambleCfg model.ScrambleSettings
	scramble    string
	curveWindow int
	last        *model.Solve

	solveTable table.Model
	rowIDs     []string

	naming    bool
	nameInput textinput.Model
	status    string

	width  int
	height int
}

var (
	idleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	readyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	runningStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	inspectOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	inspectWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FADB14"))
	inspectLateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	scrambleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	moveXStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	moveYStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	moveZStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#8FB8DE"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	tableMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// NewModel constructs the timer screen and draws the first scramble.
func NewModel(deps Deps) *Model {
	m := &Model{
		hist:        deps.History,
		settings:    deps.Settings,
		gen:         deps.Generator,
		puzzle:      deps.Puzzle,
		scrambleCfg: deps.Scramble,
		curveWindow: deps.CurveWindow,
	}
	if m.gen == nil {
		m.gen = generator.New()
	}
	if m.puzzle == "" {
		m.puzzle = model.Puzzle3x3
	}
	if m.curveWindow <= 0 {
		m.curveWindow = stats.Ao5Window
	}
	clock := deps.Clock
	if clock == nil {
		clock = timer.SystemClock{}
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = timer.NewTimeScheduler(m.dispatch)
	}
	m.machine = timer.NewMachine(clock, sched, deps.Timer, timer.Callbacks{
		OnSolve:    m.recordSolve,
		OnScramble: m.newScramble,
	})
	m.nameInput = textinput.New()
	m.nameInput.Prompt = "Session name: "
	m.nameInput.CharLimit = 40
	m.solveTable = newSolveTable()
	m.newScramble()
	m.refreshSolves()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.solveTable.SetWidth(minInt(msg.Width, tableWidth()))
		return m, nil
	case callbackMsg:
		msg.fn()
		return m, nil
	case TimerConfigMsg:
		m.applyTimerConfig(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.naming {
			return m.updateNaming(msg)
		}
		if msg.Type == tea.KeySpace {
			m.status = ""
			m.machine.Tap()
			return m, nil
		}
		if m.machine.State().Phase != timer.PhaseIdle {
			return m, nil
		}
		return m.updateIdle(msg)
	}
	return m, nil
}

func (m *Model) updateIdle(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return m, tea.Quit
	case "n":
		m.newScramble()
	case "p":
		m.scrambleCfg.UsePrimeMoves = !m.scrambleCfg.UsePrimeMoves
		m.saveScrambleSettings()
	case "d":
		m.scrambleCfg.UseDoubleMoves = !m.scrambleCfg.UseDoubleMoves
		m.saveScrambleSettings()
	case "[":
		m.scrambleCfg = m.scrambleCfg.WithLength(m.scrambleCfg.Length - 1)
		m.saveScrambleSettings()
	case "]":
		m.scrambleCfg = m.scrambleCfg.WithLength(m.scrambleCfg.Length + 1)
		m.saveScrambleSettings()
	case "1", "2", "3", "4", "5", "6":
		faces := generator.Faces(m.puzzle)
		idx, _ := strconv.Atoi(key)
		if idx > len(faces) {
			return m, nil
		}
		m.scrambleCfg = m.scrambleCfg.ToggleExcluded(faces[idx-1])
		m.saveScrambleSettings()
	case "tab":
		m.puzzle = nextPuzzle(m.puzzle)
		m.newScramble()
	case "s":
		m.hist.CycleSession()
		m.refreshSolves()
	case "N":
		m.naming = true
		m.nameInput.SetValue("")
		return m, m.nameInput.Focus()
	case "o":
		m.setPenalty(model.PenaltyOK)
	case "+":
		m.setPenalty(model.PenaltyPlusTwo)
	case "x":
		m.setPenalty(model.PenaltyDNF)
	case "delete", "backspace":
		m.deleteSelected()
	default:
		var cmd tea.Cmd
		m.solveTable, cmd = m.solveTable.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateNaming(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.naming = false
		m.nameInput.Blur()
		return m, nil
	case tea.KeyEnter:
		if _, err := m.hist.CreateSession(m.nameInput.Value()); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.naming = false
		m.status = ""
		m.nameInput.Blur()
		m.refreshSolves()
		return m, nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	contentWidth := m.width
	if contentWidth <= 0 {
		contentWidth = 80
	}
	scrambleWidth := int(float64(contentWidth) * 0.70)
	if scrambleWidth < 1 {
		scrambleWidth = 1
	}

	sections := []string{
		footerStyle.Render(m.renderHeader()),
		"",
		lipgloss.NewStyle().Width(scrambleWidth).Align(lipgloss.Center).Render(wrapStyledRunes(buildScrambleRunes(m.scramble), scrambleWidth)),
		"",
		m.renderTimer(),
		m.renderInspection(),
		"",
		m.renderStats(),
		m.renderTrend(contentWidth),
		tableMutedStyle.Render(m.solveTable.View()),
	}
	if m.naming {
		sections = append(sections, m.nameInput.View())
	}
	if m.status != "" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	footer := footerStyle.Render(m.renderFooter())
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderHeader() string {
	session := "all solves"
	if sess, ok := m.hist.ActiveSession(); ok {
		session = sess.Name
	}
	return fmt.Sprintf("%s  ·  session: %s", m.puzzle, session)
}

func (m *Model) renderTimer() string {
	st := m.machine.State()
	switch st.Phase {
	case timer.PhaseRunning:
		return runningStyle.Render(stats.FormatTime(float64(st.ElapsedMs), true))
	case timer.PhaseInspection:
		style := inspectionStyle(st.InspectionLeft)
		if st.Ready {
			style = readyStyle
		}
		return style.Render(formatInspection(st.InspectionLeft))
	}
	text := stats.FormatTime(0, true)
	if m.last != nil {
		text = stats.FormatSolve(*m.last)
	}
	if st.Ready {
		return readyStyle.Render(text)
	}
	return idleStyle.Render(text)
}

func (m *Model) renderInspection() string {
	st := m.machine.State()
	switch st.Phase {
	case timer.PhaseInspection:
		if st.Penalty != model.PenaltyOK {
			return inspectLateStyle.Render("penalty: " + string(st.Penalty))
		}
		return footerStyle.Render("inspection")
	case timer.PhaseRunning:
		if st.Penalty != model.PenaltyOK {
			return inspectLateStyle.Render("penalty: " + string(st.Penalty))
		}
	}
	return ""
}

func inspectionStyle(left int) lipgloss.Style {
	switch {
	case left <= 0:
		return inspectLateStyle
	case left <= inspectionWarnSeconds:
		return inspectWarnStyle
	}
	return inspectOKStyle
}

// formatInspection shows remaining seconds, or +n once overtime.
func formatInspection(left int) string {
	if left > 0 {
		return strconv.Itoa(left)
	}
	return "+" + strconv.Itoa(-left)
}

func (m *Model) renderStats() string {
	sum := m.hist.Summary()
	segments := []string{
		fmt.Sprintf("Solves %d", sum.Count),
		"Best " + sum.Best.String(),
		"Worst " + sum.Worst.String(),
		"Mean " + sum.Mean.String(),
		"StdDev " + sum.StdDev.String(),
		"Ao5 " + sum.Ao5.String(),
		"Ao12 " + sum.Ao12.String(),
	}
	return strings.Join(segments, "  ·  ")
}

func (m *Model) renderTrend(width int) string {
	series := stats.RollingSeries(m.hist.ActiveSolves(), m.curveWindow)
	if len(series) == 0 {
		return ""
	}
	limit := width - 10
	if limit < 1 {
		limit = 1
	}
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return footerStyle.Render(fmt.Sprintf("Ao%d ", m.curveWindow)) + stats.Sparkline(series)
}

func (m *Model) renderFooter() string {
	var excluded []string
	for _, face := range generator.Faces(m.puzzle) {
		if m.scrambleCfg.IsExcluded(face) {
			excluded = append(excluded, face)
		}
	}
	exclusions := "none"
	if len(excluded) > 0 {
		exclusions = strings.Join(excluded, " ")
	}
	segments := []string{
		fmt.Sprintf("Length %d", generator.EffectiveLength(m.puzzle, m.scrambleCfg)),
		"Prime " + onOff(m.scrambleCfg.UsePrimeMoves),
		"Double " + onOff(m.scrambleCfg.UseDoubleMoves),
		"Excluded " + exclusions,
		"space: time  n: scramble  tab: puzzle  s/N: session  o/+/x/del: edit  q: quit",
	}
	return strings.Join(segments, "  ")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (m *Model) recordSolve(res timer.Result) {
	s := m.hist.Add(model.Solve{
		RawTimeMs: res.RawMs,
		Penalty:   res.Penalty,
		Puzzle:    m.puzzle,
		Scramble:  m.scramble,
	})
	m.last = &s
	m.refreshSolves()
}

func (m *Model) newScramble() {
	m.scramble = m.gen.Generate(m.puzzle, m.scrambleCfg)
}

func (m *Model) saveScrambleSettings() {
	if m.settings != nil {
		m.settings.SaveScrambleSettings(m.scrambleCfg)
	}
	m.newScramble()
}

func (m *Model) applyTimerConfig(msg TimerConfigMsg) {
	m.machine.SetOptions(msg.Options)
	if msg.Puzzle == "" || msg.Puzzle == m.puzzle {
		return
	}
	if m.machine.State().Phase != timer.PhaseIdle {
		return
	}
	m.puzzle = msg.Puzzle
	m.newScramble()
}

func (m *Model) setPenalty(p model.Penalty) {
	id, ok := m.selectedID()
	if !ok {
		return
	}
	m.hist.UpdatePenalty(id, p)
	if m.last != nil && m.last.ID == id {
		s := m.last.WithPenalty(p)
		m.last = &s
	}
	m.refreshSolves()
}

func (m *Model) deleteSelected() {
	id, ok := m.selectedID()
	if !ok {
		return
	}
	m.hist.Delete(id)
	if m.last != nil && m.last.ID == id {
		m.last = nil
	}
	m.refreshSolves()
}

func (m *Model) selectedID() (string, bool) {
	idx := m.solveTable.Cursor()
	if idx < 0 || idx >= len(m.rowIDs) {
		return "", false
	}
	return m.rowIDs[idx], true
}

// refreshSolves rebuilds the solve list, newest first, with the rolling
// averages as of each solve.
func (m *Model) refreshSolves() {
	solves := m.hist.ActiveSolves()
	ao5 := stats.RollingSeries(solves, stats.Ao5Window)
	ao12 := stats.RollingSeries(solves, stats.Ao12Window)
	now := time.Now()
	rows := make([]table.Row, 0, len(solves))
	ids := make([]string, 0, len(solves))
	for i := len(solves) - 1; i >= 0; i-- {
		s := solves[i]
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			stats.FormatSolve(s),
			string(s.Penalty),
			string(s.Puzzle),
			ao5[i].String(),
			ao12[i].String(),
			humanize.RelTime(s.CreatedAt, now, "ago", "from now"),
		})
		ids = append(ids, s.ID)
	}
	cursor := m.solveTable.Cursor()
	m.solveTable.SetRows(rows)
	m.rowIDs = ids
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	m.solveTable.SetCursor(cursor)
}

var solveColumns = []table.Column{
	{Title: "#", Width: 5},
	{Title: "Time", Width: 10},
	{Title: "Penalty", Width: 7},
	{Title: "Puzzle", Width: 8},
	{Title: "Ao5", Width: 10},
	{Title: "Ao12", Width: 10},
	{Title: "When", Width: 16},
}

func tableWidth() int {
	total := 0
	for _, c := range solveColumns {
		total += c.Width + 1
	}
	return total
}

func newSolveTable() table.Model {
	t := table.New(
		table.WithColumns(solveColumns),
		table.WithHeight(solveTableHeight),
		table.WithFocused(true),
	)
	t.SetWidth(tableWidth())
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	t.SetStyles(styles)
	return t
}

func nextPuzzle(p model.PuzzleType) model.PuzzleType {
	for i, candidate := range model.Puzzles {
		if candidate == p {
			return model.Puzzles[(i+1)%len(model.Puzzles)]
		}
	}
	return model.Puzzles[0]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
