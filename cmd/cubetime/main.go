// Package main provides the CLI entrypoint for cubetime.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/cubetime/internal/config"
	"github.com/verte-zerg/cubetime/internal/generator"
	"github.com/verte-zerg/cubetime/internal/history"
	"github.com/verte-zerg/cubetime/internal/logging"
	"github.com/verte-zerg/cubetime/internal/model"
	"github.com/verte-zerg/cubetime/internal/stats"
	"github.com/verte-zerg/cubetime/internal/store"
	"github.com/verte-zerg/cubetime/internal/timer"
	"github.com/verte-zerg/cubetime/internal/tui"
)

const (
	defaultPuzzle      = "3x3"
	defaultCurveWindow = stats.Ao5Window
)

var (
	timerPuzzle     string
	timerInspection int
	timerLockoutMs  int
	timerFrameMs    int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cubetime",
		Short:         "Terminal speed-cubing timer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTimerCmd,
	}

	rootCmd.Flags().StringVar(&timerPuzzle, "puzzle", defaultPuzzle, "puzzle type (2x2, 3x3, 4x4, 5x5, Pyraminx, Skewb)")
	rootCmd.Flags().IntVar(&timerInspection, "inspection", timer.DefaultInspectionSeconds, "inspection seconds")
	rootCmd.Flags().IntVar(&timerLockoutMs, "lockout-ms", int(timer.DefaultLockout/time.Millisecond), "input lockout after a stop (ms)")
	rootCmd.Flags().IntVar(&timerFrameMs, "frame-ms", int(timer.DefaultFrameInterval/time.Millisecond), "running display refresh interval (ms)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newScrambleCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newSolvesCmd())
	rootCmd.AddCommand(newResetCmd())

	return rootCmd
}

func runTimerCmd(cmd *cobra.Command, _ []string) error {
	cfgPath := config.DefaultConfigPath()
	fileCfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "puzzle", &timerPuzzle, fileCfg.Timer.Puzzle)
	applyIntConfig(cmd, "inspection", &timerInspection, fileCfg.Timer.Inspection)
	applyIntConfig(cmd, "lockout-ms", &timerLockoutMs, fileCfg.Timer.LockoutMs)
	applyIntConfig(cmd, "frame-ms", &timerFrameMs, fileCfg.Timer.FrameMs)

	puzzle, err := model.ParsePuzzle(timerPuzzle)
	if err != nil {
		return fmt.Errorf("invalid --puzzle: %w", err)
	}
	if err := validateTimerFlags(); err != nil {
		return err
	}
	opts := timer.Options{
		InspectionSeconds: timerInspection,
		Lockout:           time.Duration(timerLockoutMs) * time.Millisecond,
		FrameInterval:     time.Duration(timerFrameMs) * time.Millisecond,
	}

	logCloser, err := setupLogging(fileCfg.Log)
	if err != nil {
		return err
	}
	defer closeQuietly(logCloser, "log file")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persister := store.NewPersister(st)
	hist := history.New(st.LoadSolves(ctx), st.LoadSessions(ctx), st.LoadActiveSession(ctx), persister)
	m := tui.NewModel(tui.Deps{
		History:     hist,
		Settings:    persister,
		Generator:   generator.New(),
		Timer:       opts,
		Puzzle:      puzzle,
		Scramble:    st.LoadScrambleSettings(ctx, scrambleSeed(fileCfg.Scramble)),
		CurveWindow: curveWindow(fileCfg.Stats),
	})
	slog.Info("timer: starting", "puzzle", string(puzzle), "solves", len(hist.Solves()), "sessions", len(hist.Sessions()))

	g, gctx := errgroup.WithContext(ctx)
	program := m.Program(gctx)
	g.Go(func() error {
		return persister.Run(gctx)
	})
	g.Go(func() error {
		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
			slog.Warn("config: hot reload disabled", "err", err)
			return nil
		}
		err := config.Watch(gctx, cfgPath, func(fc config.FileConfig) {
			program.Send(timerConfigMsg(fc.Timer, opts))
		})
		if err != nil {
			slog.Warn("config: hot reload disabled", "err", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return m.Run(gctx, program)
	})
	return g.Wait()
}

// timerConfigMsg overlays reloaded [timer] values on base.
func timerConfigMsg(tc config.TimerConfig, base timer.Options) tui.TimerConfigMsg {
	msg := tui.TimerConfigMsg{Options: base}
	if tc.Inspection != nil {
		msg.Options.InspectionSeconds = *tc.Inspection
	}
	if tc.LockoutMs != nil {
		msg.Options.Lockout = time.Duration(*tc.LockoutMs) * time.Millisecond
	}
	if tc.FrameMs != nil {
		msg.Options.FrameInterval = time.Duration(*tc.FrameMs) * time.Millisecond
	}
	if tc.Puzzle != nil {
		p, err := model.ParsePuzzle(*tc.Puzzle)
		if err != nil {
			slog.Warn("config: ignoring timer.puzzle", "err", err)
		} else {
			msg.Puzzle = p
		}
	}
	return msg
}

// scrambleSeed returns the settings used when none are stored yet.
func scrambleSeed(sc config.ScrambleConfig) model.ScrambleSettings {
	s := model.DefaultScrambleSettings()
	if sc.Length != nil {
		s = s.WithLength(*sc.Length)
	}
	if sc.Double != nil {
		s.UseDoubleMoves = *sc.Double
	}
	if sc.Prime != nil {
		s.UsePrimeMoves = *sc.Prime
	}
	for _, face := range sc.Exclude {
		face = strings.ToUpper(strings.TrimSpace(face))
		if face != "" && !s.IsExcluded(face) {
			s = s.ToggleExcluded(face)
		}
	}
	return s
}

func curveWindow(sc config.StatsConfig) int {
	if sc.CurveWindow != nil && *sc.CurveWindow > 0 {
		return *sc.CurveWindow
	}
	return defaultCurveWindow
}

func validateTimerFlags() error {
	if timerInspection <= 0 {
		return fmt.Errorf("--inspection must be > 0")
	}
	if timerLockoutMs < 0 {
		return fmt.Errorf("--lockout-ms must be >= 0")
	}
	if timerFrameMs <= 0 {
		return fmt.Errorf("--frame-ms must be > 0")
	}
	return nil
}

func setupLogging(lc config.LogConfig) (io.Closer, error) {
	levelName := ""
	if lc.Level != nil {
		levelName = *lc.Level
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}
	path := config.DefaultLogPath()
	if lc.File != nil && strings.TrimSpace(*lc.File) != "" {
		path = *lc.File
	}
	closer, err := logging.Setup(path, level)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return closer, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

// withHistory runs fn against the stored history and waits until every
// mutation fn made has been written.
func withHistory(ctx context.Context, st *store.Store, fn func(h *history.History) error) error {
	persister := store.NewPersister(st)
	h := history.New(st.LoadSolves(ctx), st.LoadSessions(ctx), st.LoadActiveSession(ctx), persister)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return persister.Run(gctx)
	})
	fnErr := fn(h)
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return fnErr
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# cubetime configuration
# Uncomment a value to enable it. CLI flags override config values.
# Changes to [timer] apply to a running timer on save.

[timer]
# puzzle = %q           # 2x2, 3x3, 4x4, 5x5, Pyraminx or Skewb
# inspection = %d         # Inspection seconds
# lockout-ms = %d        # Input lockout after a stop
# frame-ms = %d           # Running display refresh interval

[scramble]
# Seeds the scramble settings until they are changed in the timer.
# length = %d             # Requested length; each puzzle has a minimum
# double = true           # Allow double turns (R2)
# prime = true            # Allow prime turns (R')
# exclude = []            # Faces never used, e.g. ["F", "B"]

[stats]
# curve-window = %d        # Rolling average window for trends

[log]
# level = "info"          # debug, info, warn or error
# file = %q
`,
		defaultPuzzle,
		timer.DefaultInspectionSeconds,
		int(timer.DefaultLockout/time.Millisecond),
		int(timer.DefaultFrameInterval/time.Millisecond),
		model.DefaultScrambleSettings().Length,
		defaultCurveWindow,
		config.DefaultLogPath(),
	)
}

func closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logErrf("failed to close %s: %v\n", what, err)
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
