package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/cubetime/internal/config"
	"github.com/verte-zerg/cubetime/internal/generator"
	"github.com/verte-zerg/cubetime/internal/history"
	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/stats"
	"github.com/verte-zerg/cubetime/internal/statsui"
	"github.com/verte-zerg/cubetime/internal/store"
)

const defaultSolvesLimit = 20

var (
	scramblePuzzle  string
	scrambleLength  int
	scrambleCount   int
	scramblePrime   bool
	scrambleDouble  bool
	scrambleExclude []string
	scrambleSeedVal int64

	statsSession     string
	statsPuzzle      string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsPlain       bool

	exportFormat  string
	exportSession string
	exportPuzzle  string
	exportSince   string
	exportLast    int
	exportOutput  string

	solvesSession string
	solvesPuzzle  string
	solvesLimit   int
)

func newScrambleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scramble",
		Short: "Print scrambles",
		Args:  cobra.NoArgs,
		RunE:  runScrambleCmd,
	}
	def := model.DefaultScrambleSettings()
	cmd.Flags().StringVar(&scramblePuzzle, "puzzle", defaultPuzzle, "puzzle type")
	cmd.Flags().IntVar(&scrambleLength, "length", def.Length, "requested scramble length")
	cmd.Flags().IntVar(&scrambleCount, "count", 1, "number of scrambles")
	cmd.Flags().BoolVar(&scramblePrime, "prime", def.UsePrimeMoves, "allow prime turns")
	cmd.Flags().BoolVar(&scrambleDouble, "double", def.UseDoubleMoves, "allow double turns")
	cmd.Flags().StringSliceVar(&scrambleExclude, "exclude", nil, "faces to exclude (e.g. F,B)")
	cmd.Flags().Int64Var(&scrambleSeedVal, "seed", 0, "random seed (0 picks one)")
	return cmd
}

func runScrambleCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "puzzle", &scramblePuzzle, fileCfg.Timer.Puzzle)
	applyIntConfig(cmd, "length", &scrambleLength, fileCfg.Scramble.Length)
	applyBoolConfig(cmd, "prime", &scramblePrime, fileCfg.Scramble.Prime)
	applyBoolConfig(cmd, "double", &scrambleDouble, fileCfg.Scramble.Double)
	if !cmd.Flags().Changed("exclude") && len(fileCfg.Scramble.Exclude) > 0 {
		scrambleExclude = fileCfg.Scramble.Exclude
	}

	puzzle, err := model.ParsePuzzle(scramblePuzzle)
	if err != nil {
		return fmt.Errorf("invalid --puzzle: %w", err)
	}
	if scrambleLength < model.MinScrambleLength || scrambleLength > model.MaxScrambleLength {
		return fmt.Errorf("--length must be between %d and %d", model.MinScrambleLength, model.MaxScrambleLength)
	}
	if scrambleCount <= 0 {
		return fmt.Errorf("--count must be > 0")
	}

	settings := model.ScrambleSettings{
		Length:         scrambleLength,
		UseDoubleMoves: scrambleDouble,
		UsePrimeMoves:  scramblePrime,
	}
	faces := generator.Faces(puzzle)
	for _, face := range scrambleExclude {
		face = strings.ToUpper(strings.TrimSpace(face))
		if face == "" || settings.IsExcluded(face) {
			continue
		}
		if !containsString(faces, face) {
			return fmt.Errorf("invalid --exclude: %s has no face %q", puzzle, face)
		}
		settings = settings.ToggleExcluded(face)
	}

	gen := generator.New()
	if scrambleSeedVal != 0 {
		gen = generator.NewWithSource(rand.NewSource(scrambleSeedVal), generator.DefaultOptions())
	}
	out := cmd.OutOrStdout()
	for i := 0; i < scrambleCount; i++ {
		if _, err := fmt.Fprintln(out, gen.Generate(puzzle, settings)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSession, "session", "", "session id, id prefix or name")
	cmd.Flags().StringVar(&statsPuzzle, "puzzle", "", "puzzle filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N solves")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a plain report instead of the browser")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "curve-window", &statsCurveWindow, fileCfg.Stats.CurveWindow)

	filter, err := buildFilter(statsSession, statsPuzzle, statsSince, statsLast)
	if err != nil {
		return err
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	filter.CurveWindow = statsCurveWindow

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	ctx := context.Background()
	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		report, err := stats.BuildReport(ctx, st, filter)
		if err != nil {
			return err
		}
		return renderPlainReport(cmd.OutOrStdout(), report)
	}

	load := func(ctx context.Context, f model.StatsFilter) (stats.Report, error) {
		return stats.BuildReport(ctx, st, f)
	}
	program := tea.NewProgram(statsui.NewModel(load, filter), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func renderPlainReport(w io.Writer, r stats.Report) error {
	width := stats.TerminalWidth()
	if err := stats.RenderSummary(w, r); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderTrend(w, r, width); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderSolveTable(w, r, defaultSolvesLimit, width, time.Now()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export solves and statistics",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", string(stats.FormatJSON), "output format (json, yaml, prom)")
	cmd.Flags().StringVar(&exportSession, "session", "", "session id, id prefix or name")
	cmd.Flags().StringVar(&exportPuzzle, "puzzle", "", "puzzle filter")
	cmd.Flags().StringVar(&exportSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&exportLast, "last", 0, "limit to last N solves")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	format, err := stats.ParseFormat(exportFormat)
	if err != nil {
		return fmt.Errorf("invalid --format: %w", err)
	}
	filter, err := buildFilter(exportSession, exportPuzzle, exportSince, exportLast)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	report, err := stats.BuildReport(context.Background(), st, filter)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOutput, err)
		}
		defer closeQuietly(f, exportOutput)
		w = f
	}
	if err := stats.Export(w, report, format, time.Now()); err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	return nil
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "new NAME",
		Short: "Create a session and make it active",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsNewCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "select REF|none",
		Short: "Select the active session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsSelectCmd,
	})
	return cmd
}

func runSessionsListCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	ctx := context.Background()
	err = stats.RenderSessions(cmd.OutOrStdout(), st.LoadSessions(ctx), st.LoadSolves(ctx), st.LoadActiveSession(ctx))
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runSessionsNewCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	var created model.Session
	err = withHistory(context.Background(), st, func(h *history.History) error {
		sess, err := h.CreateSession(args[0])
		if err != nil {
			return err
		}
		created = sess
		return nil
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", created.Name, shortRef(created.ID))
	return err
}

func runSessionsSelectCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	var msg string
	err = withHistory(context.Background(), st, func(h *history.History) error {
		if strings.EqualFold(args[0], "none") {
			h.SelectSession("")
			msg = "Cleared active session; the timer shows all solves"
			return nil
		}
		sess, err := h.FindSession(args[0])
		if err != nil {
			return err
		}
		h.SelectSession(sess.ID)
		msg = fmt.Sprintf("Selected session %s", sess.Name)
		return nil
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
	return err
}

func newSolvesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solves",
		Short: "List and edit solves",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent solves",
		Args:  cobra.NoArgs,
		RunE:  runSolvesListCmd,
	}
	list.Flags().StringVar(&solvesSession, "session", "", "session id, id prefix or name")
	list.Flags().StringVar(&solvesPuzzle, "puzzle", "", "puzzle filter")
	list.Flags().IntVar(&solvesLimit, "limit", defaultSolvesLimit, "number of solves to show (0 for all)")
	cmd.AddCommand(list)
	cmd.AddCommand(&cobra.Command{
		Use:   "penalty ID OK|+2|DNF",
		Short: "Set the penalty of a solve",
		Args:  cobra.ExactArgs(2),
		RunE:  runSolvesPenaltyCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a solve",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolvesDeleteCmd,
	})
	return cmd
}

func runSolvesListCmd(cmd *cobra.Command, _ []string) error {
	filter, err := buildFilter(solvesSession, solvesPuzzle, "", 0)
	if err != nil {
		return err
	}
	if solvesLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	report, err := stats.BuildReport(context.Background(), st, filter)
	if err != nil {
		return err
	}
	if len(report.Solves) == 0 {
		logErrln("No solves found.")
		return nil
	}
	if err := stats.RenderSolveTable(cmd.OutOrStdout(), report, solvesLimit, stats.TerminalWidth(), time.Now()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func runSolvesPenaltyCmd(cmd *cobra.Command, args []string) error {
	penalty, err := model.ParsePenalty(args[1])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	var updated model.Solve
	err = withHistory(context.Background(), st, func(h *history.History) error {
		s, err := h.Find(args[0])
		if err != nil {
			return err
		}
		h.UpdatePenalty(s.ID, penalty)
		updated, err = h.Find(s.ID)
		return err
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", shortRef(updated.ID), stats.FormatSolve(updated))
	return err
}

func runSolvesDeleteCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	var deleted model.Solve
	err = withHistory(context.Background(), st, func(h *history.History) error {
		s, err := h.Find(args[0])
		if err != nil {
			return err
		}
		h.Delete(s.ID)
		deleted = s
		return nil
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", shortRef(deleted.ID), stats.FormatSolve(deleted))
	return err
}

func buildFilter(session, puzzle, since string, last int) (model.StatsFilter, error) {
	filter := model.StatsFilter{SessionID: strings.TrimSpace(session), Last: last}
	if last < 0 {
		return filter, fmt.Errorf("--last must be >= 0")
	}
	if puzzle != "" {
		p, err := model.ParsePuzzle(puzzle)
		if err != nil {
			return filter, fmt.Errorf("invalid --puzzle: %w", err)
		}
		filter.Puzzle = p
	}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return filter, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

var (
	resetSolves   bool
	resetSessions bool
	resetSettings bool
	resetYes      bool
)

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete stored solves, sessions or scramble settings",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
	cmd.Flags().BoolVar(&resetSolves, "solves", false, "delete the solve history")
	cmd.Flags().BoolVar(&resetSessions, "sessions", false, "delete sessions and the active selection")
	cmd.Flags().BoolVar(&resetSettings, "settings", false, "delete the stored scramble settings")
	cmd.Flags().BoolVar(&resetYes, "yes", false, "confirm deletion")
	return cmd
}

// resetKeys returns the store keys selected by the reset flags; no flag means everything.
func resetKeys(solves, sessions, settings bool) []string {
	if !solves && !sessions && !settings {
		solves, sessions, settings = true, true, true
	}
	var keys []string
	if solves {
		keys = append(keys, store.KeySolves)
	}
	if sessions {
		keys = append(keys, store.KeySessions, store.KeyActiveSession)
	}
	if settings {
		keys = append(keys, store.KeyScrambleSettings)
	}
	return keys
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	keys := resetKeys(resetSolves, resetSessions, resetSettings)
	if !resetYes {
		return fmt.Errorf("refusing to delete %s without --yes", strings.Join(keys, ", "))
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	ctx := context.Background()
	for _, key := range keys {
		if err := st.Delete(ctx, key); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", strings.Join(keys, ", "))
	return err
}
