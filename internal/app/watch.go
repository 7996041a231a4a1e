package app

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/output"
	"github.com/blackwell-systems/guipack/internal/watcher"
)

var (
	watchOpts     config.Overrides
	watchDebounce time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever the application sources change",
		Long: `Builds once, then watches the application directory and rebuilds after
each burst of changes. Rebuilds never overlap; changes made during a build
start another build when it finishes. The build root is ignored.

Press Ctrl+C to stop.`,
		Example: `  guipack watch
  guipack watch --debounce 2s --platform windows`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
)

func init() {
	addBuildFlags(watchCmd, &watchOpts)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before rebuilding")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(watchOpts)
	if err != nil {
		return err
	}
	if err := cfg.CheckInputs(); err != nil {
		return err
	}

	log := logger()
	builder := newBuilder(newRunner(), log, false)
	rebuild := func() error {
		res, err := builder.Run(cfg)
		if err != nil {
			output.NewReporter(stdout, output.IsColorEnabled()).Fail("%v", err)
			return err
		}
		printBuildSummary(res)
		return nil
	}

	// A failing first build is reported and watching continues.
	rebuild()

	w, err := watcher.New(watchRoots(cfg), []string{cfg.BuildRoot}, rebuild,
		watcher.WithDebounce(watchDebounce), watcher.WithLogger(log))
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	log.Info("watching for changes", "roots", watchRoots(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return w.Stop()
}

// watchRoots returns the directories holding the entry point and the icon,
// without nesting.
func watchRoots(cfg *config.Build) []string {
	roots := []string{filepath.Dir(cfg.EntryPoint)}
	iconDir := filepath.Dir(cfg.Icon)
	if !within(iconDir, roots[0]) && !within(roots[0], iconDir) {
		roots = append(roots, iconDir)
	} else if within(roots[0], iconDir) && roots[0] != iconDir {
		roots[0] = iconDir
	}
	return roots
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
