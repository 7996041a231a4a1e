package app

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/interp"
	"github.com/blackwell-systems/guipack/internal/packager"
	"github.com/blackwell-systems/guipack/internal/proc"
	"github.com/blackwell-systems/guipack/internal/proc/proctest"
	"github.com/blackwell-systems/guipack/internal/watcher"
)

const fakePython = "/fake/env/bin/python"

// resetFlags puts every flag variable back to its default; cobra only
// writes flags that appear on the command line.
func resetFlags() {
	rootDir, configFile, logLevel, logFormat = "", "", "info", "text"
	buildOpts, doctorOpts, watchOpts = config.Overrides{}, config.Overrides{}, config.Overrides{}
	buildNoHistory = false
	historyLimit, historyBuildRoot = 10, ""
	cleanAll, cleanBuildRoot = false, ""
	watchDebounce = watcher.DefaultDebounce
}

// execute runs the CLI with args against runner and returns stdout.
func execute(t *testing.T, runner *proctest.FakeRunner, env map[string]string, args ...string) (string, error) {
	t.Helper()

	oldRunner, oldHost, oldGetenv, oldGOOS := newRunner, hostInfo, getenv, goos
	oldResolver, oldOut, oldErr := resolverOptions, stdout, stderr
	t.Cleanup(func() {
		newRunner, hostInfo, getenv, goos = oldRunner, oldHost, oldGetenv, oldGOOS
		resolverOptions, stdout, stderr = oldResolver, oldOut, oldErr
		resetFlags()
	})

	lookNothing := func(string) (string, error) { return "", errors.New("not found") }
	lookup := func(k string) string { return env[k] }

	out := &bytes.Buffer{}
	newRunner = func() proc.Runner { return runner }
	hostInfo = func() packager.Host { return packager.Host{GOOS: "linux", LookPath: lookNothing} }
	getenv = lookup
	goos = "linux"
	resolverOptions = []interp.Option{
		interp.WithGOOS("linux"),
		interp.WithEnv(lookup),
		interp.WithLookPath(lookNothing),
	}
	stdout, stderr = out, &bytes.Buffer{}

	resetFlags()
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

// newRepo creates a repository with an entry point and, when iconSize > 0,
// a square PNG icon.
func newRepo(t *testing.T, iconSize int) string {
	t.Helper()
	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, "app"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "app", "gui.py"), []byte("print('gui')\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, config.FileName), []byte("name: GoStop\nplatform: windows\nicon_engine: native\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if iconSize > 0 {
		img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
		for y := 0; y < iconSize; y++ {
			for x := 0; x < iconSize; x++ {
				img.Set(x, y, color.NRGBA{G: 128, B: 255, A: 255})
			}
		}
		f, err := os.Create(filepath.Join(repo, "app", "icon.png"))
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			t.Fatal(err)
		}
	}
	return repo
}

// healthyRunner answers the probes for fakePython and makes PyInstaller
// write the .exe into the repository's build root.
func healthyRunner(repo string) *proctest.FakeRunner {
	f := &proctest.FakeRunner{}
	f.OnStdout(fakePython+` -c "import sys; print(sys.executable)"`, fakePython+"\n")
	f.OnStdout(fakePython+` -c "import PyInstaller`, "6.3.0\n")
	f.OnStdout(fakePython+` -c "import PIL`, "10.2.0\n")
	f.On("-m PyInstaller", proctest.Response{
		Result: &proc.Result{Combined: []byte("Building EXE completed successfully.\n")},
		Effect: func(proc.Command) error {
			return os.WriteFile(filepath.Join(repo, "build", "dist", "GoStop.exe"), make([]byte, 4096), 0644)
		},
	})
	return f
}
