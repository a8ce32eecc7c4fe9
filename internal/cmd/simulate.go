package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/sleepgate/internal/config"
	"github.com/Iron-Ham/sleepgate/internal/device"
	"github.com/Iron-Ham/sleepgate/internal/errors"
	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/gate"
	"github.com/Iron-Ham/sleepgate/internal/util"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run concurrent sessions against an in-process device",
	Long: `Run several sessions concurrently against one in-process device and
report what happened to each.

Every session opens the device, writes its message, reads it back, holds
the device for a while and closes it. Blocking sessions queue behind the
holder; non-blocking sessions give up with EAGAIN when the device is busy.
Press Ctrl-C to interrupt sessions that are still waiting.`,
	RunE: runSimulate,
}

var simulatePlain bool

func init() {
	simulateCmd.Flags().Int("sessions", 0, "number of concurrent sessions (default 8)")
	simulateCmd.Flags().Bool("blocking", true, "open in blocking mode")
	simulateCmd.Flags().Duration("hold", 0, "how long each session holds the device (default 50ms)")
	simulateCmd.Flags().String("message", "", "message each session writes (default \"hello\")")
	simulateCmd.Flags().BoolVar(&simulatePlain, "plain", false, "plain tab-separated output even on a terminal")
	_ = viper.BindPFlag("simulate.sessions", simulateCmd.Flags().Lookup("sessions"))
	_ = viper.BindPFlag("simulate.blocking", simulateCmd.Flags().Lookup("blocking"))
	_ = viper.BindPFlag("simulate.hold", simulateCmd.Flags().Lookup("hold"))
	_ = viper.BindPFlag("simulate.message", simulateCmd.Flags().Lookup("message"))

	rootCmd.AddCommand(simulateCmd)
}

// Simulated session outcomes.
const (
	outcomeOK        = "ok"
	outcomeBusy      = "busy"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

// readColumnWidth caps the READ column of the styled report.
const readColumnWidth = 48

type simResult struct {
	Index   int
	ID      string
	Outcome string
	Waited  time.Duration
	Held    time.Duration
	Read    string
	Err     error
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := device.New(cfg.Mailbox.Capacity,
		device.WithLogger(logger),
		device.WithBus(event.NewBus()),
		device.WithContentionLogging(cfg.Gate.LogContention),
	)
	if err != nil {
		return err
	}

	results := simulate(ctx, dev, cfg.Simulate)
	stats := dev.Gate().Stats()

	out := cmd.OutOrStdout()
	if simulatePlain || !isTerminal(out) {
		renderPlainReport(out, results, stats)
	} else {
		fmt.Fprintln(out, renderReport(cfg.Simulate, results, stats))
	}
	return nil
}

// simulate runs sc.Sessions sessions concurrently and returns their results
// in start order. Sessions still waiting when ctx ends report cancelled.
func simulate(ctx context.Context, dev *device.Device, sc config.SimulateConfig) []simResult {
	p := pool.NewWithResults[simResult]().WithContext(ctx)
	for i := 0; i < sc.Sessions; i++ {
		i := i
		p.Go(func(ctx context.Context) (simResult, error) {
			return runSimSession(ctx, dev, i, sc), nil
		})
	}

	// Tasks never return errors, so every result is kept.
	results, _ := p.Wait()
	slices.SortFunc(results, func(a, b simResult) int { return a.Index - b.Index })
	return results
}

func runSimSession(ctx context.Context, dev *device.Device, index int, sc config.SimulateConfig) simResult {
	res := simResult{Index: index}

	start := time.Now()
	f, err := dev.Open(ctx, !sc.Blocking)
	res.Waited = time.Since(start)
	if err != nil {
		res.Err = err
		switch {
		case errors.Is(err, syscall.EAGAIN):
			res.Outcome = outcomeBusy
		case errors.Is(err, syscall.EINTR):
			res.Outcome = outcomeCancelled
		default:
			res.Outcome = outcomeFailed
		}
		return res
	}
	res.ID = f.ID()
	opened := time.Now()

	defer func() {
		if err := f.Close(); err != nil && res.Err == nil {
			res.Err = err
			res.Outcome = outcomeFailed
		}
		res.Held = time.Since(opened)
	}()

	if _, err := f.Write([]byte(fmt.Sprintf("%s from %s", sc.Message, f.ID()))); err != nil {
		res.Err = err
		res.Outcome = outcomeFailed
		return res
	}

	buf := make([]byte, dev.Capacity()+64)
	n, err := f.Read(buf)
	if err != nil {
		res.Err = err
		res.Outcome = outcomeFailed
		return res
	}
	res.Read = strings.TrimSuffix(string(buf[:n]), "\n")

	timer := time.NewTimer(sc.Hold)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	res.Outcome = outcomeOK
	return res
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func countOutcomes(results []simResult) map[string]int {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}

func renderPlainReport(w io.Writer, results []simResult, stats gate.Stats) {
	fmt.Fprintln(w, "session\toutcome\twaited\theld\tread")
	for _, r := range results {
		id := r.ID
		if id == "" {
			id = "-"
		}
		detail := util.Printable([]byte(r.Read), 0)
		if r.Err != nil {
			detail = errors.ErrnoName(r.Err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, r.Outcome,
			r.Waited.Round(time.Microsecond), r.Held.Round(time.Microsecond), detail)
	}

	counts := countOutcomes(results)
	fmt.Fprintf(w, "ok=%d busy=%d cancelled=%d failed=%d granted=%d released=%d\n",
		counts[outcomeOK], counts[outcomeBusy], counts[outcomeCancelled], counts[outcomeFailed],
		stats.Granted, stats.Released)
}

func renderReport(sc config.SimulateConfig, results []simResult, stats gate.Stats) string {
	mode := "non-blocking"
	if sc.Blocking {
		mode = "blocking"
	}
	title := titleStyle.Render("sleepgate simulation") + " " +
		labelStyle.Render(fmt.Sprintf("%d %s sessions, hold %s", sc.Sessions, mode, sc.Hold))

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		id := r.ID
		if id == "" {
			id = "-"
		}
		detail := util.Printable([]byte(r.Read), readColumnWidth)
		if r.Err != nil {
			detail = errors.ErrnoName(r.Err)
		}
		rows = append(rows, []string{
			id, r.Outcome,
			r.Waited.Round(time.Microsecond).String(),
			r.Held.Round(time.Microsecond).String(),
			detail,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers("SESSION", "OUTCOME", "WAITED", "HELD", "READ").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 0 {
				return sessionStyle.Padding(0, 1)
			}
			if col == 1 {
				return outcomeStyle(rows[row][1]).Padding(0, 1)
			}
			return plainStyle.Padding(0, 1)
		})

	counts := countOutcomes(results)
	summary := fmt.Sprintf("%s  %s  %s  %s   %s",
		okStyle.Render(fmt.Sprintf("%d ok", counts[outcomeOK])),
		warnStyle.Render(fmt.Sprintf("%d busy", counts[outcomeBusy])),
		warnStyle.Render(fmt.Sprintf("%d cancelled", counts[outcomeCancelled])),
		errStyle.Render(fmt.Sprintf("%d failed", counts[outcomeFailed])),
		labelStyle.Render(fmt.Sprintf("gate: granted %d, released %d, misuse %d",
			stats.Granted, stats.Released, stats.Misuse)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render(), summary)
}

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case outcomeOK:
		return okStyle
	case outcomeBusy, outcomeCancelled:
		return warnStyle
	default:
		return errStyle
	}
}
