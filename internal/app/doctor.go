package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/icon"
	"github.com/blackwell-systems/guipack/internal/interp"
	"github.com/blackwell-systems/guipack/internal/output"
	"github.com/blackwell-systems/guipack/internal/pipeline"
	"github.com/blackwell-systems/guipack/internal/proc"
	"github.com/blackwell-systems/guipack/internal/shim"
	"github.com/blackwell-systems/guipack/internal/store"
)

const pillowProbe = "import PIL; print(PIL.__version__)"

var (
	doctorOpts config.Overrides

	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check that a build can run",
		Long: `Runs the same checks a build would, without building.

Checks:
  • Project configuration and entry point
  • Source icon and the tools to convert it
  • Interpreter resolution and PyInstaller
  • Version-manager shims on PATH
  • Build history

Critical problems make the command fail; warnings do not.`,
		Args: cobra.NoArgs,
		RunE: runDoctor,
	}
)

func init() {
	doctorCmd.Flags().StringVar(&doctorOpts.Python, "python", "", "interpreter to check (default: resolution chain)")
	doctorCmd.Flags().StringVar(&doctorOpts.Platform, "platform", "", "target platform: mac or windows (default: host)")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(stdout, "Running guipack diagnostics...")
	fmt.Fprintln(stdout)

	r := output.NewReporter(stdout, output.IsColorEnabled())
	log := newLogger("error", logFormat, stderr)

	root, err := repoRoot()
	if err != nil {
		r.Fail("Cannot determine repository root: %v", err)
		return finishDoctor(r)
	}
	r.OK("Repository root: %s", root)

	cfg, err := config.Load(root, configFile, doctorOpts, getenv, goos)
	if err != nil {
		r.Fail("Configuration: %v", err)
		r.Action("Fix %s or pass the matching flag", config.FileName)
		return finishDoctor(r)
	}
	r.OK("Target: %s %s, build root %s", cfg.Platform, cfg.ArtifactName(), cfg.BuildRoot)

	if err := cfg.CheckInputs(); err != nil {
		r.Fail("Entry point not found: %s", cfg.EntryPoint)
		r.Action("Set 'entry' in %s or pass --entry", config.FileName)
	} else {
		r.OK("Entry point: %s", cfg.EntryPoint)
	}

	iconOK := checkSourceIcon(r, cfg)

	if v := getenv(pipeline.SearchPathVar); v != "" {
		r.Warn("%s is set; it is cleared while building", pipeline.SearchPathVar)
		r.Note("%s=%s", pipeline.SearchPathVar, v)
	}

	runner := newRunner()
	spinner := output.NewSpinner("Resolving interpreter")
	spinner.SetWriter(stderr)
	spinner.Start()
	env, err := newResolver(runner, log).Resolve(cfg.Python)
	spinner.Stop()

	var notFound *interp.EnvironmentNotFoundError
	var noTool *interp.ToolNotAvailableError
	switch {
	case errors.As(err, &notFound):
		r.Fail("No usable Python interpreter")
		for _, a := range notFound.Attempts {
			r.Note("%s (%s): %s", a.Path, a.Origin, a.Reason)
		}
		r.Action("Activate your environment or pass --python")
	case errors.As(err, &noTool):
		r.Fail("PyInstaller not importable from %s", noTool.Interpreter)
		if noTool.RealPath != "" && noTool.RealPath != noTool.Interpreter {
			r.Note("%s runs %s", noTool.Interpreter, noTool.RealPath)
		}
		if noTool.Detail != "" {
			r.Note("%s", noTool.Detail)
		}
		r.Action("%s -m pip install pyinstaller", noTool.Interpreter)
	case err != nil:
		r.Fail("Interpreter resolution failed: %v", err)
	default:
		r.OK("Interpreter: %s (via %s)", env.DisplayPath, env.Origin)
		r.OK("PyInstaller %s", env.ToolVersion)
		checkShims(r, env)
		if iconOK {
			checkIconTools(r, cfg, runner, env)
		}
	}

	checkHistory(r, cfg)
	return finishDoctor(r)
}

func checkSourceIcon(r *output.Reporter, cfg *config.Build) bool {
	info, err := os.Stat(cfg.Icon)
	if err != nil || info.IsDir() {
		r.Warn("Source icon not found: %s", cfg.Icon)
		r.Note("the app will use PyInstaller's default icon")
		return false
	}
	img, err := icon.LoadImage(cfg.Icon)
	if err != nil {
		r.Warn("Source icon is not a readable image: %v", err)
		return false
	}
	b := img.Bounds()
	r.OK("Source icon: %s (%dx%d)", cfg.Icon, b.Dx(), b.Dy())
	if b.Dx() < 256 || b.Dy() < 256 {
		r.Warn("Source icon is smaller than 256x256; large renditions will be missing or blurry")
	}
	return true
}

func checkShims(r *output.Reporter, env *interp.Environment) {
	if env.Source != interp.SourceSearchPath {
		return
	}
	name := filepath.Base(env.Interpreter)
	if dir := shim.ShadowedBy(name, getenv("PATH")); dir != "" {
		r.Warn("%s on PATH is a shim from %s", name, dir)
		r.Note("builds use %s", env.DisplayPath)
		r.Action("Activate the intended environment or pass --python")
	}
}

func checkIconTools(r *output.Reporter, cfg *config.Build, runner proc.Runner, env *interp.Environment) {
	switch {
	case cfg.Platform == config.PlatformMac:
		host := hostInfo()
		if icon.IconutilAvailable(host.GOOS, host.LookPath) {
			r.OK("iconutil available")
			return
		}
		r.Warn("iconutil not available; mac builds will use the default icon")
		r.Note("iconutil ships with macOS")
	case cfg.IconEngine == config.EngineNative:
		r.OK("Icon converter: native")
	default:
		res, err := runner.Run(proc.Command{Name: env.Interpreter, Args: []string{"-c", pillowProbe}})
		if err != nil || !res.Success() {
			r.Warn("Pillow not importable; the .ico cannot be generated")
			r.Action("%s -m pip install pillow, or set 'icon_engine: native'", env.Interpreter)
			return
		}
		r.OK("Pillow %s", strings.TrimSpace(string(res.Stdout)))
	}
}

func checkHistory(r *output.Reporter, cfg *config.Build) {
	dbPath := filepath.Join(cfg.BuildRoot, store.FileName)
	if _, err := os.Stat(dbPath); err != nil {
		r.OK("No builds recorded yet")
		return
	}
	st, err := store.New(dbPath)
	if err != nil {
		r.Warn("Cannot open build history: %v", err)
		return
	}
	defer st.Close()

	n, err := st.CountBuilds()
	if err != nil {
		r.Warn("Cannot read build history: %v", err)
		return
	}
	last, err := st.LastSuccessful(cfg.AppName)
	if err != nil || last == nil {
		r.OK("%d build(s) recorded, none successful for %s", n, cfg.AppName)
		return
	}
	r.OK("%d build(s) recorded; last success %s", n, last.StartedAt.Local().Format("2006-01-02 15:04"))
}

func finishDoctor(r *output.Reporter) error {
	fmt.Fprintln(stdout)
	switch {
	case r.Critical() > 0:
		fmt.Fprintf(stdout, "Found %d critical issue(s) and %d warning(s).\n", r.Critical(), r.Warnings())
		return fmt.Errorf("diagnostics failed")
	case r.Warnings() > 0:
		fmt.Fprintf(stdout, "Found %d warning(s). Builds will work.\n", r.Warnings())
	default:
		fmt.Fprintln(stdout, "✓ All checks passed!")
	}
	return nil
}
