package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/sleepgate/internal/config"
	"github.com/Iron-Ham/sleepgate/internal/device"
	"github.com/Iron-Ham/sleepgate/internal/event"
	"github.com/Iron-Ham/sleepgate/internal/logging"
	"github.com/Iron-Ham/sleepgate/internal/metrics"
	"github.com/Iron-Ham/sleepgate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the device over a unix or tcp socket",
	Long: `Serve the device to clients speaking the sleepgate line protocol.

Clients open the device with OPEN BLOCK or OPEN NONBLOCK, then WRITE, READ
and CLOSE it. See 'sleepgate echo' and 'sleepgate cat' for a ready-made
client. The log level follows edits to the config file while serving.

On SIGINT or SIGTERM the server stops accepting, cancels pending opens and
releases the device held by any connected client.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("metrics", false, "serve Prometheus metrics")
	serveCmd.Flags().String("metrics-address", "", "metrics listen address (default :9464)")
	_ = viper.BindPFlag("metrics.enabled", serveCmd.Flags().Lookup("metrics"))
	_ = viper.BindPFlag("metrics.address", serveCmd.Flags().Lookup("metrics-address"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	bus := event.NewBus()
	dev, err := device.New(cfg.Mailbox.Capacity,
		device.WithLogger(logger),
		device.WithBus(bus),
		device.WithContentionLogging(cfg.Gate.LogContention),
	)
	if err != nil {
		return err
	}

	watchConfig(logger)

	srv := server.New(dev,
		server.WithLogger(logger),
		server.WithIdleTimeout(cfg.Server.IdleTimeout),
	)

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		if reg, err = newMetricsRegistry(bus, dev); err != nil {
			return err
		}
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return srv.ListenAndServe(ctx, cfg.Server.Network, cfg.Server.Address)
	})
	if reg != nil {
		p.Go(func(ctx context.Context) error {
			return metrics.Serve(ctx, cfg.Metrics.Address, reg, logger)
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderBanner(cfg))

	err = p.Wait()
	cancelled := dev.Close()
	if cfg.Server.Network == "unix" {
		_ = os.Remove(cfg.Server.Address)
	}
	logger.Info("shutdown complete", "cancelled_opens", cancelled)
	return err
}

// watchConfig applies log level changes from the config file while serving.
// Other settings take effect on restart.
func watchConfig(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		reloaded, err := config.Load()
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		logger.SetLevel(reloaded.Logging.Level)
		logger.Info("config reloaded", "file", e.Name, "op", e.Op.String(), "level", logger.Level())
	})
	viper.WatchConfig()
}

// newMetricsRegistry builds a registry with process metrics and the
// device's gate and mailbox metrics fed from bus.
func newMetricsRegistry(bus *event.Bus, dev *device.Device) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	col, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, err
	}
	col.Attach(bus)

	if err := metrics.RegisterGateGauges(reg, dev.Gate()); err != nil {
		return nil, err
	}
	return reg, nil
}

func renderBanner(cfg *config.Config) string {
	rows := [][2]string{
		{"listen", cfg.Server.Network + " " + cfg.Server.Address},
		{"mailbox", fmt.Sprintf("%d bytes", cfg.Mailbox.Capacity)},
		{"log level", strings.ToLower(logging.ParseLevel(cfg.Logging.Level))},
	}
	if cfg.Metrics.Enabled {
		rows = append(rows, [2]string{"metrics", "http://" + cfg.Metrics.Address + "/metrics"})
	}
	if cfg.Server.IdleTimeout > 0 {
		rows = append(rows, [2]string{"idle timeout", cfg.Server.IdleTimeout.String()})
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("sleepgate") + " " + labelStyle.Render("serving"))
	for _, row := range rows {
		sb.WriteString("\n" + labelStyle.Render(fmt.Sprintf("%-13s", row[0])) + row[1])
	}
	return boxStyle.Render(sb.String())
}

// printErr writes a styled one-line error for interactive commands.
func printErr(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errStyle.Render(fmt.Sprintf(format, args...)))
}
