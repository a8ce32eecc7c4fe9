package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/sleepgate/internal/config"
	"github.com/Iron-Ham/sleepgate/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "sleepgate",
	Short: "Exclusive-access message device with blocking and non-blocking opens",
	Long: `Sleepgate guards a single shared message buffer with an exclusive gate.
Only one client may have the device open at a time. Non-blocking opens fail
immediately when the device is busy; blocking opens sleep until the holder
closes it or the caller is interrupted.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/sleepgate/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("network", "", "server network: unix or tcp")
	rootCmd.PersistentFlags().String("address", "", "server socket path or host:port")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("server.network", rootCmd.PersistentFlags().Lookup("network"))
	_ = viper.BindPFlag("server.address", rootCmd.PersistentFlags().Lookup("address"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SLEEPGATE")
	// e.g., SLEEPGATE_MAILBOX_CAPACITY for mailbox.capacity
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
}
