package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/interp"
	"github.com/blackwell-systems/guipack/internal/output"
	"github.com/blackwell-systems/guipack/internal/packager"
	"github.com/blackwell-systems/guipack/internal/pipeline"
	"github.com/blackwell-systems/guipack/internal/proc"
)

// Seams replaced by tests.
var (
	newRunner = func() proc.Runner { return proc.NewExecRunner() }
	hostInfo  = packager.CurrentHost
	getenv    = os.Getenv
	goos      = runtime.GOOS

	// resolverOptions are appended to every resolver the commands build.
	resolverOptions []interp.Option

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func logger() *slog.Logger {
	return newLogger(logLevel, logFormat, stderr)
}

// repoRoot returns --root, or the repository containing the working
// directory.
func repoRoot() (string, error) {
	if rootDir != "" {
		return filepath.Abs(rootDir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	return config.FindRepoRoot(wd)
}

func loadConfig(o config.Overrides) (*config.Build, error) {
	root, err := repoRoot()
	if err != nil {
		return nil, err
	}
	return config.Load(root, configFile, o, getenv, goos)
}

func newResolver(runner proc.Runner, log *slog.Logger) *interp.Resolver {
	opts := append([]interp.Option{interp.WithLogger(log)}, resolverOptions...)
	return interp.NewResolver(runner, opts...)
}

func newBuilder(runner proc.Runner, log *slog.Logger, noHistory bool) *pipeline.Builder {
	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithOutput(stderr),
		pipeline.WithResolverOptions(resolverOptions...),
		pipeline.WithHost(hostInfo()),
	}
	if noHistory {
		opts = append(opts, pipeline.WithoutHistory())
	}
	return pipeline.New(runner, opts...)
}

// printBuildSummary reports a finished build on stdout.
func printBuildSummary(res *pipeline.Result) {
	r := output.NewReporter(stdout, output.IsColorEnabled())
	r.OK("Interpreter: %s (PyInstaller %s, via %s)", res.Env.DisplayPath, res.Env.ToolVersion, res.Env.Origin)
	if res.Icon != nil {
		r.OK("Icon: %s (%s)", res.Icon.Path, res.Icon.Status)
	} else {
		r.Warn("Icon: PyInstaller default")
	}
	r.OK("Built %s", res.Artifact)
}
