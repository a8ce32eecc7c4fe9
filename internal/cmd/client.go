package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/sleepgate/internal/config"
	"github.com/Iron-Ham/sleepgate/internal/server"
)

var echoCmd = &cobra.Command{
	Use:   "echo <message>",
	Short: "Open the served device and write a message",
	Long: `Open the device served by 'sleepgate serve', write a message and close it.

By default the open blocks until the device is free; use --nonblock to fail
with EAGAIN instead. --hold keeps the device open after writing, which makes
it easy to watch other clients queue up.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEcho,
}

var catCmd = &cobra.Command{
	Use:   "cat",
	Short: "Open the served device and print the last message",
	Args:  cobra.NoArgs,
	RunE:  runCat,
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show the served device's gate state",
	Args:  cobra.NoArgs,
	RunE:  runStat,
}

var (
	echoNonblock bool
	echoHold     time.Duration
	catNonblock  bool
)

func init() {
	echoCmd.Flags().BoolVarP(&echoNonblock, "nonblock", "n", false, "fail with EAGAIN if the device is busy")
	echoCmd.Flags().DurationVar(&echoHold, "hold", 0, "keep the device open this long after writing")
	catCmd.Flags().BoolVarP(&catNonblock, "nonblock", "n", false, "fail with EAGAIN if the device is busy")

	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(statCmd)
}

// dialDevice connects to the configured server. The connection is aborted
// when ctx ends so a blocking open returns promptly on Ctrl-C.
func dialDevice(ctx context.Context) (*server.Client, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := server.Dial(ctx, cfg.Server.Network, cfg.Server.Address)
	if err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() { c.Abort() }) //nolint:errcheck
	return c, func() {
		stop()
		c.Close() //nolint:errcheck
	}, nil
}

func runEcho(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, done, err := dialDevice(ctx)
	if err != nil {
		return err
	}
	defer done()

	id, err := c.Open(echoNonblock)
	if err != nil {
		return reportErr(cmd, "open", openError(ctx, err))
	}

	msg := strings.Join(args, " ")
	n, err := c.Write(msg)
	if err != nil {
		return reportErr(cmd, "write", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", sessionStyle.Render(id), okStyle.Render(fmt.Sprintf("wrote %d bytes", n)))
	if n < len(msg) {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("truncated %d bytes", len(msg)-n)))
	}

	if echoHold > 0 {
		timer := time.NewTimer(echoHold)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	return c.CloseDevice()
}

func runCat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, done, err := dialDevice(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, err := c.Open(catNonblock); err != nil {
		return reportErr(cmd, "open", openError(ctx, err))
	}

	data, err := c.Read(server.MaxReadSize)
	switch {
	case err == io.EOF:
	case err != nil:
		return reportErr(cmd, "read", err)
	default:
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	}

	return c.CloseDevice()
}

func runStat(cmd *cobra.Command, args []string) error {
	c, done, err := dialDevice(cmd.Context())
	if err != nil {
		return err
	}
	defer done()

	stat, err := c.Stat()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, field := range strings.Fields(stat) {
		key, value, _ := strings.Cut(field, "=")
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", key)), value)
	}
	return nil
}

// reportErr prints a styled error and keeps cobra from printing it again.
func reportErr(cmd *cobra.Command, op string, err error) error {
	printErr(cmd.ErrOrStderr(), "%s: %v", op, err)
	cmd.SilenceErrors = true
	return err
}

// openError reports an interrupted wait as such instead of the broken
// connection it causes.
func openError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted while waiting: %w", syscall.EINTR)
	}
	return err
}
