// Package icon turns one source raster image into the platform icon the
// packaging tool embeds in the artifact: a multi-resolution .ico on Windows
// or an .icns bundle on macOS.
//
// The derived file is cached next to the build output and only regenerated
// when the source is strictly newer than the cache or the cache is missing.
// Every failure in here is recoverable: the caller always gets either a
// usable icon path or nil, never an error, so packaging is never blocked.
package icon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format is the derived icon container.
type Format string

const (
	FormatICO  Format = "ico"
	FormatICNS Format = "icns"
)

// Status describes where a Ref came from.
type Status string

const (
	// StatusCached means the existing derivative was fresh and reused as is.
	StatusCached Status = "cached"
	// StatusRegenerated means a conversion ran and replaced the cache.
	StatusRegenerated Status = "regenerated"
	// StatusFallback means conversion failed and a stale cache was reused.
	StatusFallback Status = "fallback"
)

// ICOSizes are the square renditions packed into a Windows icon.
var ICOSizes = []int{256, 128, 64, 48, 32, 24, 16}

// IconsetBaseSizes are the macOS base sizes; each also gets an @2x rendition.
var IconsetBaseSizes = []int{16, 32, 64, 128, 256, 512}

// Asset is one source image and the platform derivative built from it.
type Asset struct {
	Source string
	Target string
	Format Format
}

// Ref points at a usable derived icon.
type Ref struct {
	Path   string
	Format Format
	Status Status
}

// Converter produces a derived icon from a source image.
type Converter interface {
	// Name identifies the converter in logs.
	Name() string
	// Available reports whether the converter's prerequisites exist. It is
	// decided when the converter is built, once per build.
	Available() bool
	// Convert writes the derivative of src to dst.
	Convert(src, dst string) error
}

// ConversionError wraps any failure to produce a derivative. It is only
// ever logged; Prepare never returns it.
type ConversionError struct {
	Converter string
	Source    string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("icon conversion with %s failed for %s: %v", e.Converter, e.Source, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// NeedsRebuild reports whether target must be regenerated from source:
// true when target is absent or source's modification time is strictly
// after target's.
func NeedsRebuild(source, target string) (bool, error) {
	targetInfo, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat cached icon %s: %w", target, err)
	}
	sourceInfo, err := os.Stat(source)
	if err != nil {
		return false, fmt.Errorf("stat source icon %s: %w", source, err)
	}
	return sourceInfo.ModTime().After(targetInfo.ModTime()), nil
}

// Pipeline prepares platform icons.
type Pipeline struct {
	logger *slog.Logger
}

// NewPipeline returns a Pipeline that reports through logger.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger}
}

// Prepare returns the derived icon for a, regenerating it with conv when
// stale. A nil Ref means build with the default icon.
func (p *Pipeline) Prepare(a Asset, conv Converter) *Ref {
	if _, err := os.Stat(a.Source); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("cannot read source icon, using default icon", "source", a.Source, "error", err)
		} else {
			p.logger.Info("no source icon, using default icon", "source", a.Source)
		}
		return nil
	}

	rebuild, err := NeedsRebuild(a.Source, a.Target)
	if err != nil {
		p.logger.Warn("cannot check icon cache, regenerating", "error", err)
		rebuild = true
	}
	if !rebuild {
		p.logger.Debug("icon cache is fresh", "path", a.Target)
		return &Ref{Path: a.Target, Format: a.Format, Status: StatusCached}
	}

	if conv == nil || !conv.Available() {
		name := "none"
		if conv != nil {
			name = conv.Name()
		}
		p.logger.Warn("icon tools unavailable, using default icon", "converter", name, "source", a.Source)
		return nil
	}

	if err := p.convert(a, conv); err != nil {
		p.logger.Warn("icon conversion failed", "error", err)
		if _, statErr := os.Stat(a.Target); statErr == nil {
			p.logger.Warn("using previous icon cache", "path", a.Target)
			return &Ref{Path: a.Target, Format: a.Format, Status: StatusFallback}
		}
		p.logger.Warn("no previous icon cache, using default icon")
		return nil
	}

	p.logger.Info("icon regenerated", "path", a.Target, "converter", conv.Name())
	return &Ref{Path: a.Target, Format: a.Format, Status: StatusRegenerated}
}

// convert runs conv into a temporary sibling of the target and renames it
// into place, so a failed conversion never clobbers the previous cache.
func (p *Pipeline) convert(a Asset, conv Converter) error {
	if err := os.MkdirAll(filepath.Dir(a.Target), 0755); err != nil {
		return &ConversionError{Converter: conv.Name(), Source: a.Source, Err: err}
	}

	tmp := tempPath(a.Target)
	os.Remove(tmp)
	defer os.Remove(tmp)

	if err := conv.Convert(a.Source, tmp); err != nil {
		return &ConversionError{Converter: conv.Name(), Source: a.Source, Err: err}
	}
	info, err := os.Stat(tmp)
	if err != nil || info.Size() == 0 {
		return &ConversionError{Converter: conv.Name(), Source: a.Source, Err: errors.New("converter produced no output")}
	}
	if err := os.Rename(tmp, a.Target); err != nil {
		return &ConversionError{Converter: conv.Name(), Source: a.Source, Err: err}
	}
	return nil
}

// tempPath keeps the target's extension last; iconutil and Pillow both
// look at it.
func tempPath(target string) string {
	ext := filepath.Ext(target)
	return strings.TrimSuffix(target, ext) + ".tmp" + ext
}
