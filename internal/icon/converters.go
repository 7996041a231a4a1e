package icon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blackwell-systems/guipack/internal/proc"
)

// pillowScript re-encodes argv[1] as a multi-size ICO at argv[2]. The
// source is centred on a transparent square first, since Pillow keeps the
// aspect ratio when it downsamples each size.
const pillowScript = `import sys
from PIL import Image
img = Image.open(sys.argv[1]).convert("RGBA")
m = max(img.size)
square = Image.new("RGBA", (m, m), (0, 0, 0, 0))
square.paste(img, ((m - img.width) // 2, (m - img.height) // 2))
square.save(sys.argv[2], format="ICO", sizes=[(s, s) for s in (%s)])
`

// InterpreterICO converts with Pillow inside the resolved interpreter.
type InterpreterICO struct {
	runner      proc.Runner
	interpreter string
}

// NewInterpreterICO returns a Converter that runs Pillow through interpreter.
func NewInterpreterICO(runner proc.Runner, interpreter string) *InterpreterICO {
	return &InterpreterICO{runner: runner, interpreter: interpreter}
}

func (c *InterpreterICO) Name() string { return "pillow" }

// Available is true whenever an interpreter is known; a missing Pillow
// shows up as a conversion failure.
func (c *InterpreterICO) Available() bool { return c.interpreter != "" }

func (c *InterpreterICO) Convert(src, dst string) error {
	sizes := make([]string, len(ICOSizes))
	for i, s := range ICOSizes {
		sizes[i] = strconv.Itoa(s)
	}
	script := fmt.Sprintf(pillowScript, strings.Join(sizes, ", "))

	res, err := c.runner.Run(proc.Command{
		Name: c.interpreter,
		Args: []string{"-c", script, src, dst},
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("pillow exited with status %d: %s", res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// NativeICO converts in-process without Python.
type NativeICO struct{}

func (NativeICO) Name() string    { return "native" }
func (NativeICO) Available() bool { return true }

func (NativeICO) Convert(src, dst string) error {
	img, err := LoadImage(src)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := EncodeICO(f, img, ICOSizes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Rendition is one PNG inside a macOS .iconset directory.
type Rendition struct {
	Name   string
	Pixels int
}

// IconsetRenditions lists every file iconutil expects: each base size and
// its double-density counterpart, up to 1024px for the 512 base.
func IconsetRenditions() []Rendition {
	out := make([]Rendition, 0, 2*len(IconsetBaseSizes))
	for _, s := range IconsetBaseSizes {
		out = append(out,
			Rendition{Name: fmt.Sprintf("icon_%dx%d.png", s, s), Pixels: s},
			Rendition{Name: fmt.Sprintf("icon_%dx%d@2x.png", s, s), Pixels: 2 * s},
		)
	}
	return out
}

// IconutilAvailable probes for macOS's iconutil.
func IconutilAvailable(goos string, lookPath func(string) (string, error)) bool {
	if goos != "darwin" {
		return false
	}
	_, err := lookPath("iconutil")
	return err == nil
}

// Iconset renders an .iconset directory and composes it with iconutil.
type Iconset struct {
	runner    proc.Runner
	available bool
}

// NewIconset returns a macOS Converter; available is the result of the
// once-per-build capability probe.
func NewIconset(runner proc.Runner, available bool) *Iconset {
	return &Iconset{runner: runner, available: available}
}

func (c *Iconset) Name() string    { return "iconutil" }
func (c *Iconset) Available() bool { return c.available }

func (c *Iconset) Convert(src, dst string) error {
	img, err := LoadImage(src)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp(filepath.Dir(dst), "guipack-*.iconset")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	if err := WriteIconset(dir, img); err != nil {
		return err
	}

	res, err := c.runner.Run(proc.Command{
		Name: "iconutil",
		Args: []string{"-c", "icns", dir, "-o", dst},
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("iconutil exited with status %d: %s", res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}
