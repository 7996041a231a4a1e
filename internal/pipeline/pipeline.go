// Package pipeline runs one build from a loaded configuration to a
// packaged artifact.
//
// Stages run strictly in order on the calling goroutine:
//
//	resolve  find the interpreter and PyInstaller (nothing is written yet)
//	layout   create the build-scoped output tree
//	icon     derive the platform icon (best effort, never fatal)
//	package  run PyInstaller
//
// PYTHONPATH is cleared for the whole build and restored on every exit path.
package pipeline

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/icon"
	"github.com/blackwell-systems/guipack/internal/interp"
	"github.com/blackwell-systems/guipack/internal/layout"
	"github.com/blackwell-systems/guipack/internal/packager"
	"github.com/blackwell-systems/guipack/internal/proc"
	"github.com/blackwell-systems/guipack/internal/shell"
	"github.com/blackwell-systems/guipack/internal/store"
)

// SearchPathVar is cleared while building so user packages on the search
// path cannot leak into the bundle.
const SearchPathVar = "PYTHONPATH"

// Result describes a finished build.
type Result struct {
	Artifact string
	Env      *interp.Environment
	Paths    *layout.Paths
	// Icon is nil when the default icon was used.
	Icon *icon.Ref
	// Record is the history row, nil when history is disabled or the
	// build never reached the layout stage.
	Record *store.BuildRecord
}

// Builder runs builds. A Builder holds no per-build state and may be reused,
// but not concurrently: builds mutate the process environment.
type Builder struct {
	runner       proc.Runner
	logger       *slog.Logger
	stream       io.Writer
	resolverOpts []interp.Option
	host         packager.Host
	now          func() time.Time
	history      bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithOutput sets where PyInstaller's output is streamed.
func WithOutput(w io.Writer) Option {
	return func(b *Builder) { b.stream = w }
}

// WithResolverOptions passes options through to the interpreter resolver.
func WithResolverOptions(opts ...interp.Option) Option {
	return func(b *Builder) { b.resolverOpts = append(b.resolverOpts, opts...) }
}

// WithHost overrides the host used for icon converter probes.
func WithHost(h packager.Host) Option {
	return func(b *Builder) { b.host = h }
}

// WithClock overrides time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithoutHistory disables the history database.
func WithoutHistory() Option {
	return func(b *Builder) { b.history = false }
}

// New returns a Builder that spawns processes through runner.
func New(runner proc.Runner, opts ...Option) *Builder {
	b := &Builder{
		runner:  runner,
		logger:  slog.Default(),
		stream:  io.Discard,
		host:    packager.CurrentHost(),
		now:     time.Now,
		history: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run performs one build. Fatal failures are returned as *StageError; icon
// problems are logged and never fail the build.
func (b *Builder) Run(cfg *config.Build) (*Result, error) {
	started := b.now()

	plat, err := packager.For(cfg.Platform)
	if err != nil {
		return nil, err
	}

	scope, err := shell.Acquire(SearchPathVar, "")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := scope.Restore(); err != nil {
			b.logger.Warn("cannot restore environment", "var", SearchPathVar, "error", err)
		}
	}()
	if prev, ok := scope.Previous(); ok && prev != "" {
		b.logger.Info("cleared search path for build", "var", SearchPathVar, "previous", prev)
	}

	resolverOpts := append([]interp.Option{interp.WithLogger(b.logger)}, b.resolverOpts...)
	env, err := interp.NewResolver(b.runner, resolverOpts...).Resolve(cfg.Python)
	if err != nil {
		return nil, &StageError{Stage: StageResolve, Err: err}
	}
	b.logger.Info("interpreter resolved",
		"path", env.DisplayPath, "source", env.Source, "pyinstaller", env.ToolVersion)

	paths, err := layout.Prepare(cfg.BuildRoot)
	if err != nil {
		return nil, &StageError{Stage: StageLayout, Err: err}
	}

	conv := plat.IconConverter(cfg, b.runner, env.Interpreter, b.host)
	ref := icon.NewPipeline(b.logger).Prepare(packager.IconAsset(plat, cfg, paths.Root), conv)

	b.logger.Info("packaging", "app", cfg.AppName, "platform", plat.Name(), "entry", cfg.EntryPoint)
	artifact, pkgErr := packager.Invoke(b.runner, plat, packager.Request{
		Config: cfg,
		Env:    env,
		Paths:  paths,
		Icon:   ref,
	}, b.stream)

	res := &Result{Artifact: artifact, Env: env, Paths: paths, Icon: ref}
	if b.history {
		res.Record = b.record(cfg, res, started, pkgErr)
	}

	if pkgErr != nil {
		return res, &StageError{Stage: StagePackage, Err: pkgErr}
	}
	b.logger.Info("build finished", "artifact", artifact, "elapsed", b.now().Sub(started).Round(time.Millisecond))
	return res, nil
}

// record appends the outcome to the history database. Failures to record
// are logged and otherwise ignored.
func (b *Builder) record(cfg *config.Build, res *Result, started time.Time, pkgErr error) *store.BuildRecord {
	rec := &store.BuildRecord{
		StartedAt:   started,
		FinishedAt:  b.now(),
		App:         cfg.AppName,
		Platform:    string(cfg.Platform),
		Interpreter: res.Env.DisplayPath,
		ToolVersion: res.Env.ToolVersion,
		IconStatus:  "none",
		Artifact:    res.Artifact,
		Status:      store.StatusSucceeded,
	}
	if res.Icon != nil {
		rec.IconStatus = string(res.Icon.Status)
	}
	if pkgErr != nil {
		rec.Status = store.StatusFailed
		rec.Error = pkgErr.Error()
		var pe *packager.PackagingError
		if errors.As(pkgErr, &pe) {
			rec.ExitCode = pe.ExitCode
		}
	} else {
		size, err := sizeOf(res.Artifact)
		if err != nil {
			b.logger.Debug("artifact size incomplete", "artifact", res.Artifact, "error", err)
		}
		rec.ArtifactBytes = size
	}

	st, err := store.Open(filepath.Join(res.Paths.Root, store.FileName))
	if err != nil {
		b.logger.Warn("cannot open build history", "error", err)
		return nil
	}
	defer st.Close()

	if err := st.InsertBuild(rec); err != nil {
		b.logger.Warn("cannot record build", "error", err)
		return nil
	}
	return rec
}

// sizeOf returns the size of a file, or the total size of a bundle
// directory. A missing path counts as zero. Entries that cannot be read are
// left out of the total and reported in the error.
func sizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var (
		total   int64
		skipped []error
	)
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			skipped = append(skipped, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			skipped = append(skipped, err)
			return nil
		}
		total += fi.Size()
		return nil
	})
	return total, errors.Join(append(skipped, err)...)
}
