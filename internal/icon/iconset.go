package icon

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// WriteIconset writes every rendition of img into dir.
func WriteIconset(dir string, img image.Image) error {
	for _, r := range IconsetRenditions() {
		if err := writePNG(filepath.Join(dir, r.Name), Square(img, r.Pixels)); err != nil {
			return fmt.Errorf("write %s: %w", r.Name, err)
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
