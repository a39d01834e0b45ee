package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Centaurus99/Spearmint/internal/config"
)

var (
	cfgFile  string
	logLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "replicate",
		Short:        "Calibrate a network emulator against measurements of a real path",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "settings.yaml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log", "", "log level (trace, debug, info, warn, error); overrides log_level")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logrus.SetOutput(os.Stderr)
		if logLevel == "" {
			return nil
		}
		return setLogLevel(logLevel)
	}
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newBaselineCmd())
	root.AddCommand(newParseCmd())
	root.AddCommand(newWorkersCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newTraceCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

func setLogLevel(name string) error {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", name)
	}
	logrus.SetLevel(level)
	return nil
}

// loadConfig reads --config and applies its log level unless --log was given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		if err := setLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
