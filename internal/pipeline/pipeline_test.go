package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/icon"
	"github.com/blackwell-systems/guipack/internal/interp"
	"github.com/blackwell-systems/guipack/internal/packager"
	"github.com/blackwell-systems/guipack/internal/proc"
	"github.com/blackwell-systems/guipack/internal/proc/proctest"
	"github.com/blackwell-systems/guipack/internal/store"
)

const condaRoot = "/opt/conda/envs/gui"

var condaPython = filepath.Join(condaRoot, "bin", "python")

type fixture struct {
	cfg    *config.Build
	runner *proctest.FakeRunner
	logs   *bytes.Buffer
	out    *bytes.Buffer
	env    map[string]string
	path   map[string]string
}

func newFixture(t *testing.T, platform config.Platform, withIcon bool) *fixture {
	t.Helper()
	repo := t.TempDir()
	entry := filepath.Join(repo, "app", "gui.py")
	if err := os.MkdirAll(filepath.Dir(entry), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(entry, []byte("print('gui')\n"), 0644); err != nil {
		t.Fatal(err)
	}
	iconPath := filepath.Join(repo, "app", "icon.png")
	if withIcon {
		writePNG(t, iconPath, 64, 64)
	}

	return &fixture{
		cfg: &config.Build{
			RepoRoot:   repo,
			AppName:    "GoStop",
			EntryPoint: entry,
			Icon:       iconPath,
			BuildRoot:  filepath.Join(repo, "build"),
			Platform:   platform,
			DataDest:   "icon",
			IconEngine: config.EngineNative,
		},
		runner: &proctest.FakeRunner{},
		logs:   &bytes.Buffer{},
		out:    &bytes.Buffer{},
		env:    map[string]string{},
		path:   map[string]string{},
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// interpreter registers a runnable interpreter at path, with PyInstaller
// importable when version is non-empty.
func (fx *fixture) interpreter(path, version string) {
	fx.runner.OnStdout(path+` -c "import sys; print(sys.executable)"`, path+"\n")
	if version == "" {
		fx.runner.OnExit(path+` -c "import PyInstaller`, 1, "ModuleNotFoundError: No module named 'PyInstaller'\n")
		return
	}
	fx.runner.OnStdout(path+` -c "import PyInstaller`, version+"\n")
}

// pyinstallerSucceeds makes the packaging run create the artifact.
func (fx *fixture) pyinstallerSucceeds(check func()) {
	fx.runner.On("-m PyInstaller", proctest.Response{
		Result: &proc.Result{Combined: []byte("Building EXE completed successfully.\n")},
		Effect: func(cmd proc.Command) error {
			if check != nil {
				check()
			}
			dist := filepath.Join(fx.cfg.BuildRoot, "dist")
			return os.WriteFile(filepath.Join(dist, fx.cfg.AppName+".exe"), make([]byte, 2048), 0644)
		},
	})
}

func (fx *fixture) builder(opts ...Option) *Builder {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(fx.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithOutput(fx.out),
		WithResolverOptions(
			interp.WithGOOS("linux"),
			interp.WithEnv(func(k string) string { return fx.env[k] }),
			interp.WithLookPath(func(name string) (string, error) {
				if p, ok := fx.path[name]; ok {
					return p, nil
				}
				return "", errors.New("not found")
			}),
		),
		WithHost(packager.Host{GOOS: "linux", LookPath: func(string) (string, error) { return "", errors.New("not found") }}),
	}
	return New(fx.runner, append(base, opts...)...)
}

func pyinstallerArgs(t *testing.T, r *proctest.FakeRunner) []string {
	t.Helper()
	calls := r.CallsMatching("-m PyInstaller")
	if len(calls) != 1 {
		t.Fatalf("PyInstaller ran %d times, want 1", len(calls))
	}
	return calls[0].Args
}

func hasArg(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func TestRun_CondaEnvironmentWithIcon(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, true)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")
	fx.pyinstallerSucceeds(nil)

	res, err := fx.builder().Run(fx.cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantArtifact := filepath.Join(fx.cfg.BuildRoot, "dist", "GoStop.exe")
	if res.Artifact != wantArtifact {
		t.Errorf("Artifact = %q, want %q", res.Artifact, wantArtifact)
	}
	if res.Env.Interpreter != condaPython || res.Env.ToolVersion != "6.3.0" {
		t.Errorf("Env = %+v", res.Env)
	}
	if res.Icon == nil || res.Icon.Status != icon.StatusRegenerated {
		t.Fatalf("Icon = %+v, want regenerated", res.Icon)
	}

	cache := filepath.Join(fx.cfg.BuildRoot, "icon.ico")
	images, err := icon.ReadICOFile(cache)
	if err != nil {
		t.Fatalf("ReadICOFile() error = %v", err)
	}
	if len(images) == 0 {
		t.Error("icon cache holds no images")
	}

	args := pyinstallerArgs(t, fx.runner)
	if got, _ := hasArg(args, "--icon"); got != cache {
		t.Errorf("--icon = %q, want %q", got, cache)
	}
	if got, _ := hasArg(args, "--add-data"); got != fx.cfg.Icon+";icon" {
		t.Errorf("--add-data = %q", got)
	}
	if args[len(args)-1] != fx.cfg.EntryPoint {
		t.Errorf("last argument = %q, want entry point", args[len(args)-1])
	}
	if !strings.Contains(fx.out.String(), "completed successfully") {
		t.Errorf("packaging output not streamed: %q", fx.out.String())
	}
	for _, dir := range []string{"dist", "pyi_build"} {
		if _, err := os.Stat(filepath.Join(fx.cfg.BuildRoot, dir)); err != nil {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}

func TestRun_SearchPathFallback(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, false)
	fx.path["python3"] = "/usr/bin/python3"
	fx.interpreter("/usr/bin/python3", "6.1.0")
	fx.pyinstallerSucceeds(nil)

	res, err := fx.builder().Run(fx.cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Env.Interpreter != "/usr/bin/python3" {
		t.Errorf("Interpreter = %q", res.Env.Interpreter)
	}
	if res.Icon != nil {
		t.Errorf("Icon = %+v, want nil without a source icon", res.Icon)
	}

	args := pyinstallerArgs(t, fx.runner)
	if _, ok := hasArg(args, "--icon"); ok {
		t.Error("--icon passed without a source icon")
	}
	if _, ok := hasArg(args, "--add-data"); ok {
		t.Error("--add-data passed without a source icon")
	}
}

func TestRun_ToolMissingStopsBeforeWriting(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, true)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "")

	res, err := fx.builder().Run(fx.cfg)
	if res != nil {
		t.Errorf("Result = %+v, want nil", res)
	}

	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageResolve {
		t.Fatalf("error = %v, want resolve StageError", err)
	}
	var te *interp.ToolNotAvailableError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want ToolNotAvailableError", err)
	}
	if !strings.Contains(err.Error(), "pip install pyinstaller") {
		t.Errorf("error %q does not suggest installing PyInstaller", err)
	}
	if _, statErr := os.Stat(fx.cfg.BuildRoot); !os.IsNotExist(statErr) {
		t.Errorf("build root exists after failed resolution: %v", statErr)
	}
	if n := len(fx.runner.CallsMatching("-m PyInstaller")); n != 0 {
		t.Errorf("PyInstaller ran %d times", n)
	}
}

func TestRun_NoInterpreter(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, false)

	_, err := fx.builder().Run(fx.cfg)

	if !errors.Is(err, interp.ErrEnvironmentNotFound) {
		t.Fatalf("error = %v, want ErrEnvironmentNotFound", err)
	}
	if !strings.HasPrefix(err.Error(), "resolve: ") {
		t.Errorf("error %q does not name the stage", err)
	}
}

func TestRun_SearchPathClearedAndRestored(t *testing.T) {
	t.Setenv(SearchPathVar, "/home/user/site")

	fx := newFixture(t, config.PlatformWindows, false)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")

	var during string
	var duringSet bool
	fx.pyinstallerSucceeds(func() {
		during, duringSet = os.LookupEnv(SearchPathVar)
	})

	if _, err := fx.builder().Run(fx.cfg); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if duringSet {
		t.Errorf("%s = %q while packaging, want unset", SearchPathVar, during)
	}
	if got := os.Getenv(SearchPathVar); got != "/home/user/site" {
		t.Errorf("%s after build = %q, want restored", SearchPathVar, got)
	}
}

func TestRun_SearchPathRestoredOnFailure(t *testing.T) {
	t.Setenv(SearchPathVar, "/home/user/site")

	fx := newFixture(t, config.PlatformWindows, false)

	if _, err := fx.builder().Run(fx.cfg); err == nil {
		t.Fatal("Run() succeeded without an interpreter")
	}
	if got := os.Getenv(SearchPathVar); got != "/home/user/site" {
		t.Errorf("%s after failed build = %q, want restored", SearchPathVar, got)
	}
}

func TestRun_IconFailureIsNotFatal(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, true)
	fx.cfg.IconEngine = config.EngineInterpreter
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")
	fx.runner.OnExit("from PIL import Image", 1, "ModuleNotFoundError: No module named 'PIL'\n")
	fx.pyinstallerSucceeds(nil)

	res, err := fx.builder().Run(fx.cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Icon != nil {
		t.Errorf("Icon = %+v, want default icon", res.Icon)
	}
	if !strings.Contains(fx.logs.String(), "icon conversion failed") {
		t.Errorf("conversion failure not logged:\n%s", fx.logs.String())
	}

	args := pyinstallerArgs(t, fx.runner)
	if _, ok := hasArg(args, "--icon"); ok {
		t.Error("--icon passed after failed conversion")
	}
	if _, ok := hasArg(args, "--add-data"); !ok {
		t.Error("--add-data missing although the source icon exists")
	}
}

func TestRun_MacWithoutIconutilUsesDefaultIcon(t *testing.T) {
	fx := newFixture(t, config.PlatformMac, true)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")
	fx.pyinstallerSucceeds(nil)

	res, err := fx.builder().Run(fx.cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Icon != nil {
		t.Errorf("Icon = %+v, want nil", res.Icon)
	}
	if want := filepath.Join(fx.cfg.BuildRoot, "dist", "GoStop.app"); res.Artifact != want {
		t.Errorf("Artifact = %q, want %q", res.Artifact, want)
	}
	if got, _ := hasArg(pyinstallerArgs(t, fx.runner), "--add-data"); got != fx.cfg.Icon+":icon" {
		t.Errorf("--add-data = %q", got)
	}
}

func TestRun_PackagingFailure(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, false)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")
	fx.runner.OnExit("-m PyInstaller", 1, "ERROR: Script file 'gui.py' does not exist.\n")

	res, err := fx.builder().Run(fx.cfg)

	var se *StageError
	if !errors.As(err, &se) || se.Stage != StagePackage {
		t.Fatalf("error = %v, want package StageError", err)
	}
	var pe *packager.PackagingError
	if !errors.As(err, &pe) || pe.ExitCode != 1 {
		t.Fatalf("error = %v, want PackagingError with exit code 1", err)
	}
	if !strings.Contains(pe.Output, "does not exist") {
		t.Errorf("Output = %q", pe.Output)
	}
	if res == nil || res.Record == nil {
		t.Fatal("failed packaging run was not recorded")
	}
	if res.Record.Status != store.StatusFailed || res.Record.ExitCode != 1 {
		t.Errorf("Record = %+v", res.Record)
	}
	if !strings.Contains(err.Error(), "| ERROR: Script file 'gui.py' does not exist.") {
		t.Errorf("error message lacks the tool output: %v", err)
	}
	if !strings.Contains(res.Record.Error, "does not exist") {
		t.Errorf("recorded error lacks the tool output: %q", res.Record.Error)
	}
}

func TestRun_RecordsHistory(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, false)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")
	fx.pyinstallerSucceeds(nil)

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tick := start
	clock := func() time.Time {
		now := tick
		tick = tick.Add(5 * time.Second)
		return now
	}

	res, err := fx.builder(WithClock(clock)).Run(fx.cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	st, err := store.Open(filepath.Join(fx.cfg.BuildRoot, store.FileName))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	builds, err := st.ListBuilds(0)
	if err != nil {
		t.Fatalf("ListBuilds() error = %v", err)
	}
	if len(builds) != 1 {
		t.Fatalf("recorded %d builds, want 1", len(builds))
	}
	got := builds[0]
	if got.ID != res.Record.ID {
		t.Errorf("ID = %q, want %q", got.ID, res.Record.ID)
	}
	if got.Status != store.StatusSucceeded || got.ToolVersion != "6.3.0" || got.IconStatus != "none" {
		t.Errorf("record = %+v", got)
	}
	if got.ArtifactBytes != 2048 {
		t.Errorf("ArtifactBytes = %d, want 2048", got.ArtifactBytes)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, start)
	}
}

func TestRun_WithoutHistory(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, false)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")
	fx.pyinstallerSucceeds(nil)

	res, err := fx.builder(WithoutHistory()).Run(fx.cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Record != nil {
		t.Errorf("Record = %+v, want nil", res.Record)
	}
	if _, err := os.Stat(filepath.Join(fx.cfg.BuildRoot, store.FileName)); !os.IsNotExist(err) {
		t.Errorf("history database created: %v", err)
	}
}

func TestRun_CachedIconIsReused(t *testing.T) {
	fx := newFixture(t, config.PlatformWindows, true)
	fx.env[interp.EnvCondaPrefix] = condaRoot
	fx.interpreter(condaPython, "6.3.0")
	fx.pyinstallerSucceeds(nil)

	b := fx.builder(WithoutHistory())
	if _, err := b.Run(fx.cfg); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	cache := filepath.Join(fx.cfg.BuildRoot, "icon.ico")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(fx.cfg.Icon, past, past); err != nil {
		t.Fatal(err)
	}

	res, err := b.Run(fx.cfg)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if res.Icon == nil || res.Icon.Status != icon.StatusCached || res.Icon.Path != cache {
		t.Errorf("Icon = %+v, want cached %s", res.Icon, cache)
	}
}

func TestStageError(t *testing.T) {
	inner := errors.New("disk full")
	err := &StageError{Stage: StageLayout, Err: inner}
	if err.Error() != "layout: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("StageError does not unwrap")
	}
}

func TestSizeOf(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "GoStop.exe")
	if err := os.WriteFile(exe, make([]byte, 300), 0644); err != nil {
		t.Fatal(err)
	}
	bundle := filepath.Join(dir, "GoStop.app")
	macos := filepath.Join(bundle, "Contents", "MacOS")
	if err := os.MkdirAll(macos, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(macos, "GoStop"), make([]byte, 1000), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), make([]byte, 24), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want int64
	}{
		{"file", exe, 300},
		{"bundle", bundle, 1024},
		{"missing", filepath.Join(dir, "nope.exe"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sizeOf(tt.path)
			if err != nil {
				t.Fatalf("sizeOf: %v", err)
			}
			if got != tt.want {
				t.Errorf("sizeOf = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSizeOf_ReportsUnreadableEntries(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs POSIX permissions enforced")
	}
	bundle := filepath.Join(t.TempDir(), "GoStop.app")
	locked := filepath.Join(bundle, "Contents", "Resources")
	if err := os.MkdirAll(locked, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), make([]byte, 24), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(locked, "icon.icns"), make([]byte, 500), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	got, err := sizeOf(bundle)
	if err == nil {
		t.Error("unreadable directory was not reported")
	}
	if got != 24 {
		t.Errorf("sizeOf = %d, want the readable 24 bytes", got)
	}
}
