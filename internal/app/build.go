package app

import (
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/guipack/internal/config"
)

var (
	buildOpts      config.Overrides
	buildNoHistory bool

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Package the application with PyInstaller",
		Long: `Build resolves the interpreter, prepares the build root, converts the
icon and runs PyInstaller. The artifact is written to <build root>/dist.

Stages:
  • resolve  interpreter and PyInstaller (nothing is written if this fails)
  • layout   <build root>/dist and <build root>/pyi_build
  • icon     .icns or .ico, regenerated only when the PNG is newer
  • package  PyInstaller --onefile --windowed

PYTHONPATH is cleared while building and restored afterwards.`,
		Example: `  guipack build
  guipack build --platform windows --icon-engine native
  guipack build --python .venv/bin/python --name GoStop`,
		Args: cobra.NoArgs,
		RunE: runBuild,
	}
)

func init() {
	addBuildFlags(buildCmd, &buildOpts)
	buildCmd.Flags().BoolVar(&buildNoHistory, "no-history", false, "do not record the build in history.db")
}

// addBuildFlags registers the flags shared by build and watch.
func addBuildFlags(cmd *cobra.Command, o *config.Overrides) {
	f := cmd.Flags()
	f.StringVar(&o.Python, "python", "", "interpreter to build with (default: $GUIPACK_PYTHON, active environment, PATH)")
	f.StringVar(&o.Platform, "platform", "", "target platform: mac or windows (default: host)")
	f.StringVar(&o.Name, "name", "", "application name (default: App)")
	f.StringVar(&o.Entry, "entry", "", "GUI entry-point script (default: app/gui.py)")
	f.StringVar(&o.Icon, "icon", "", "source PNG icon (default: app/icon.png)")
	f.StringVar(&o.BuildRoot, "build-root", "", "build output root (default: build)")
	f.StringVar(&o.IconEngine, "icon-engine", "", "Windows icon converter: interpreter or native")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(buildOpts)
	if err != nil {
		return err
	}
	if err := cfg.CheckInputs(); err != nil {
		return err
	}

	res, err := newBuilder(newRunner(), logger(), buildNoHistory).Run(cfg)
	if err != nil {
		return err
	}
	printBuildSummary(res)
	return nil
}
