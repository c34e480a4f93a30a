// Command ifwatch is a demo consumer of the netmon package: it watches
// the host's network interfaces and prints every change to stdout.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuuji/ifwatch/internal/config"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	globalConfigPath string
	globalVerbose    bool
	globalLogger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ifwatch",
	Short: "Watch network interface changes",
	Long: `ifwatch observes Linux rtnetlink state — links, addresses, and
routes — and prints every interface change as it happens.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if globalVerbose {
			level = slog.LevelDebug
		}
		globalLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "path to config file (default: /etc/ifwatch/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ifwatch version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}

func resolvedConfigPath() string {
	if globalConfigPath != "" {
		return globalConfigPath
	}
	return config.DefaultConfigPath
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
