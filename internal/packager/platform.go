package packager

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/icon"
	"github.com/blackwell-systems/guipack/internal/proc"
)

// PlatformPackager is the per-platform part of a build: the artifact type,
// the extra PyInstaller flags and the icon derivative.
type PlatformPackager interface {
	Name() string
	// ArtifactSuffix is appended to the app name inside the dist directory.
	ArtifactSuffix() string
	PlatformFlags(b *config.Build) []string
	// DataSeparator joins source and destination in --add-data.
	DataSeparator() string
	IconFormat() icon.Format
	IconConverter(b *config.Build, runner proc.Runner, interpreter string, host Host) icon.Converter
	IconCachePath(root string) string
}

// Host describes the machine running the build, for converter probes.
type Host struct {
	GOOS     string
	LookPath func(string) (string, error)
}

// CurrentHost is the running machine.
func CurrentHost() Host {
	return Host{GOOS: runtime.GOOS, LookPath: exec.LookPath}
}

// For returns the packager for a platform.
func For(p config.Platform) (PlatformPackager, error) {
	switch p {
	case config.PlatformMac:
		return MacPackager{}, nil
	case config.PlatformWindows:
		return WindowsPackager{}, nil
	}
	return nil, fmt.Errorf("no packager for platform %q", p)
}

// MacPackager builds a windowed .app bundle.
type MacPackager struct{}

func (MacPackager) Name() string            { return string(config.PlatformMac) }
func (MacPackager) ArtifactSuffix() string  { return ".app" }
func (MacPackager) DataSeparator() string   { return ":" }
func (MacPackager) IconFormat() icon.Format { return icon.FormatICNS }

func (MacPackager) PlatformFlags(b *config.Build) []string {
	var flags []string
	if b.BundleID != "" {
		flags = append(flags, "--osx-bundle-identifier", b.BundleID)
	}
	if b.TargetArch != "" {
		flags = append(flags, "--target-architecture", b.TargetArch)
	}
	return flags
}

// IconConverter renders the iconset in-process and needs iconutil to pack
// it, which only exists on macOS.
func (MacPackager) IconConverter(_ *config.Build, runner proc.Runner, _ string, host Host) icon.Converter {
	return icon.NewIconset(runner, icon.IconutilAvailable(host.GOOS, host.LookPath))
}

func (MacPackager) IconCachePath(root string) string {
	return filepath.Join(root, "icon.icns")
}

// WindowsPackager builds a single-file .exe.
type WindowsPackager struct{}

func (WindowsPackager) Name() string            { return string(config.PlatformWindows) }
func (WindowsPackager) ArtifactSuffix() string  { return ".exe" }
func (WindowsPackager) DataSeparator() string   { return ";" }
func (WindowsPackager) IconFormat() icon.Format { return icon.FormatICO }

func (WindowsPackager) PlatformFlags(b *config.Build) []string {
	if b.VersionFile == "" {
		return nil
	}
	return []string{"--version-file", b.VersionFile}
}

func (WindowsPackager) IconConverter(b *config.Build, runner proc.Runner, interpreter string, _ Host) icon.Converter {
	if b.IconEngine == config.EngineNative {
		return icon.NativeICO{}
	}
	return icon.NewInterpreterICO(runner, interpreter)
}

func (WindowsPackager) IconCachePath(root string) string {
	return filepath.Join(root, "icon.ico")
}

// IconAsset describes the derivative p needs for the build rooted at root.
func IconAsset(p PlatformPackager, b *config.Build, root string) icon.Asset {
	return icon.Asset{
		Source: b.Icon,
		Target: p.IconCachePath(root),
		Format: p.IconFormat(),
	}
}
