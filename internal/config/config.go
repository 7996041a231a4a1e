// Package config builds the immutable configuration for one build from the
// project file, the environment and command-line overrides.
//
// Precedence, highest first: flags, environment, guipack.yaml, defaults.
// Every path ends up absolute, resolved against the repository root rather
// than the caller's working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/guipack/internal/interp"
	"github.com/blackwell-systems/guipack/internal/layout"
)

// FileName is the project file looked up at the repository root.
const FileName = "guipack.yaml"

// Defaults, relative to the repository root.
const (
	DefaultAppName   = "App"
	DefaultEntry     = "app/gui.py"
	DefaultIcon      = "app/icon.png"
	DefaultBuildRoot = "build"
	DefaultDataDest  = "icon"
)

// Platform selects the artifact type.
type Platform string

const (
	PlatformMac     Platform = "mac"
	PlatformWindows Platform = "windows"
)

// ParsePlatform accepts the common spellings of each platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mac", "macos", "darwin", "osx":
		return PlatformMac, nil
	case "windows", "win", "win32":
		return PlatformWindows, nil
	}
	return "", fmt.Errorf("unknown platform %q (want mac or windows)", s)
}

// HostPlatform maps a GOOS to the platform built on it.
func HostPlatform(goos string) (Platform, error) {
	switch goos {
	case "darwin":
		return PlatformMac, nil
	case "windows":
		return PlatformWindows, nil
	}
	return "", fmt.Errorf("PyInstaller cannot produce a mac or windows artifact on %s; pass --platform", goos)
}

// IconEngine selects how the Windows .ico is produced.
type IconEngine string

const (
	// EngineInterpreter runs Pillow in the resolved interpreter.
	EngineInterpreter IconEngine = "interpreter"
	// EngineNative encodes the icon in-process.
	EngineNative IconEngine = "native"
)

// File is the on-disk shape of guipack.yaml.
type File struct {
	Name       string `yaml:"name"`
	Entry      string `yaml:"entry"`
	Icon       string `yaml:"icon"`
	BuildRoot  string `yaml:"build_root"`
	Platform   string `yaml:"platform"`
	Python     string `yaml:"python"`
	DataDest   string `yaml:"data_dest"`
	IconEngine string `yaml:"icon_engine"`
	Mac        struct {
		BundleID   string `yaml:"bundle_id"`
		TargetArch string `yaml:"target_arch"`
	} `yaml:"mac"`
	Windows struct {
		VersionFile string `yaml:"version_file"`
	} `yaml:"windows"`
}

// Overrides are values supplied on the command line. Empty means unset.
type Overrides struct {
	Name       string
	Entry      string
	Icon       string
	BuildRoot  string
	Platform   string
	Python     string
	IconEngine string
}

// Build is the configuration of one build. It is not modified after Load.
type Build struct {
	RepoRoot   string
	AppName    string
	EntryPoint string
	Icon       string
	BuildRoot  string
	Platform   Platform
	// Python is the explicit interpreter, empty to let the resolver search.
	Python      string
	DataDest    string
	IconEngine  IconEngine
	BundleID    string
	TargetArch  string
	VersionFile string
}

// LoadFile reads a project file. A missing file yields an empty File and
// no error.
func LoadFile(path string) (*File, error) {
	f := &File{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return f, nil
}

// FindRepoRoot walks up from start to the nearest directory holding
// guipack.yaml or .git. It returns start itself when neither is found.
func FindRepoRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for dir := abs; ; {
		for _, marker := range []string{FileName, ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// Load assembles a Build. configPath may be empty for <repoRoot>/guipack.yaml.
// getenv is usually os.Getenv; goos is usually runtime.GOOS.
func Load(repoRoot, configPath string, o Overrides, getenv func(string) string, goos string) (*Build, error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve repository root: %w", err)
	}
	f, err := LoadFile(projectFile(root, configPath))
	if err != nil {
		return nil, err
	}

	b := &Build{
		RepoRoot:    root,
		AppName:     first(o.Name, f.Name, DefaultAppName),
		EntryPoint:  resolve(root, first(o.Entry, f.Entry, DefaultEntry)),
		Icon:        resolve(root, first(o.Icon, f.Icon, DefaultIcon)),
		BuildRoot:   resolve(root, first(o.BuildRoot, f.BuildRoot, DefaultBuildRoot)),
		DataDest:    first(f.DataDest, DefaultDataDest),
		BundleID:    f.Mac.BundleID,
		TargetArch:  f.Mac.TargetArch,
		VersionFile: f.Windows.VersionFile,
	}
	if b.VersionFile != "" {
		b.VersionFile = resolve(root, b.VersionFile)
	}

	// The resolver reads GUIPACK_PYTHON itself; the file value only applies
	// when neither the flag nor the variable is set.
	switch {
	case o.Python != "":
		b.Python = o.Python
	case getenv(interp.EnvExplicit) == "" && f.Python != "":
		b.Python = resolveInterpreter(root, f.Python)
	}

	if p := first(o.Platform, f.Platform); p != "" {
		if b.Platform, err = ParsePlatform(p); err != nil {
			return nil, err
		}
	} else if b.Platform, err = HostPlatform(goos); err != nil {
		return nil, err
	}

	switch engine := IconEngine(first(o.IconEngine, f.IconEngine, string(EngineInterpreter))); engine {
	case EngineInterpreter, EngineNative:
		b.IconEngine = engine
	default:
		return nil, fmt.Errorf("unknown icon engine %q (want interpreter or native)", engine)
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks invariants that do not depend on the file system.
func (b *Build) Validate() error {
	if b.AppName == "" || strings.ContainsAny(b.AppName, `/\:`) {
		return fmt.Errorf("invalid app name %q", b.AppName)
	}
	for name, p := range map[string]string{"entry point": b.EntryPoint, "icon": b.Icon, "build root": b.BuildRoot} {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("%s %q is not absolute", name, p)
		}
	}
	return layout.CheckConfined(b.RepoRoot, b.BuildRoot)
}

// CheckInputs verifies the entry point exists. It is separate from Validate
// so that commands which never build can run without sources.
func (b *Build) CheckInputs() error {
	if info, err := os.Stat(b.EntryPoint); err != nil || info.IsDir() {
		return fmt.Errorf("entry point %s not found", b.EntryPoint)
	}
	return nil
}

// ResolveBuildRoot returns the absolute build root from override, the
// project file or the default, without the rest of Load's checks.
func ResolveBuildRoot(repoRoot, configPath, override string) (string, error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", err
	}
	f, err := LoadFile(projectFile(root, configPath))
	if err != nil {
		return "", err
	}
	buildRoot := resolve(root, first(override, f.BuildRoot, DefaultBuildRoot))
	if err := layout.CheckConfined(root, buildRoot); err != nil {
		return "", err
	}
	return buildRoot, nil
}

// ArtifactName is the file or bundle name inside the dist directory.
func (b *Build) ArtifactName() string {
	if b.Platform == PlatformMac {
		return b.AppName + ".app"
	}
	return b.AppName + ".exe"
}

// projectFile resolves the --config value against the repository root.
func projectFile(root, configPath string) string {
	switch {
	case configPath == "":
		return filepath.Join(root, FileName)
	case filepath.IsAbs(configPath):
		return configPath
	}
	return filepath.Join(root, configPath)
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolve(root, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// resolveInterpreter treats a bare command name ("python3.12") as a PATH
// lookup and anything with a separator as a repository-relative path.
func resolveInterpreter(root, p string) string {
	if !strings.ContainsAny(p, `/\`) {
		return p
	}
	return resolve(root, p)
}
