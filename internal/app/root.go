package app

import (
	"github.com/spf13/cobra"
)

var (
	rootDir    string
	configFile string
	logLevel   string
	logFormat  string

	// RootCmd is the root command for guipack
	RootCmd = &cobra.Command{
		Use:   "guipack",
		Short: "Package a Python GUI application into a macOS .app or Windows .exe",
		Long: `guipack turns a Python desktop application into a double-clickable
artifact by driving PyInstaller from the right interpreter.

It finds the interpreter (explicit --python, the active conda or virtual
environment, then PATH), converts the PNG icon into the platform format,
and writes everything under a single build root inside the repository.

Quick Start:
  1. guipack doctor
  2. guipack build
  3. open build/dist/App.app   (or build\dist\App.exe)

Configuration is read from guipack.yaml at the repository root; flags
override it.`,
		Example: `  # Build for the current platform
  guipack build

  # Build with a specific interpreter and name
  guipack build --python ~/miniforge3/envs/gui/bin/python --name GoStop

  # Rebuild on every source change
  guipack watch

  # Show recent builds
  guipack history`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "repository root (default: nearest directory with guipack.yaml or .git)")
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "project file (default: <root>/guipack.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(buildCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(cleanCmd)
	RootCmd.AddCommand(watchCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
