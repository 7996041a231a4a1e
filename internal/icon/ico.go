package icon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

// ICO layout: a 6-byte ICONDIR, one 16-byte ICONDIRENTRY per image, then
// the image payloads. Payloads are PNG, which every Windows since Vista
// reads for all sizes.
const (
	icoHeaderSize = 6
	icoEntrySize  = 16
	icoTypeIcon   = 1
)

type icoDir struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

type icoEntry struct {
	Width      uint8 // 0 means 256
	Height     uint8
	ColorCount uint8
	Reserved   uint8
	Planes     uint16
	BitCount   uint16
	BytesInRes uint32
	Offset     uint32
}

// ICOImage is one rendition found in an ICO file.
type ICOImage struct {
	Width  int
	Height int
	Size   int
}

// EncodeICO writes img as an ICO container holding one square PNG per
// requested size. Sizes larger than the source are skipped; the icon is
// only ever derived by downsampling.
func EncodeICO(w io.Writer, img image.Image, sizes []int) error {
	limit := longestSide(img)

	var payloads [][]byte
	var kept []int
	for _, s := range sizes {
		if s > limit || s <= 0 || s > 256 {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, Square(img, s)); err != nil {
			return fmt.Errorf("encode %dx%d: %w", s, s, err)
		}
		payloads = append(payloads, buf.Bytes())
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return fmt.Errorf("source image is %dpx, smaller than every icon size", limit)
	}

	if err := binary.Write(w, binary.LittleEndian, icoDir{Type: icoTypeIcon, Count: uint16(len(kept))}); err != nil {
		return err
	}

	offset := uint32(icoHeaderSize + icoEntrySize*len(kept))
	for i, s := range kept {
		dim := uint8(s)
		if s == 256 {
			dim = 0
		}
		entry := icoEntry{
			Width:      dim,
			Height:     dim,
			Planes:     1,
			BitCount:   32,
			BytesInRes: uint32(len(payloads[i])),
			Offset:     offset,
		}
		if err := binary.Write(w, binary.LittleEndian, entry); err != nil {
			return err
		}
		offset += entry.BytesInRes
	}

	for _, p := range payloads {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// ReadICO lists the renditions in an ICO file.
func ReadICO(r io.Reader) ([]ICOImage, error) {
	var dir icoDir
	if err := binary.Read(r, binary.LittleEndian, &dir); err != nil {
		return nil, fmt.Errorf("read ICO header: %w", err)
	}
	if dir.Reserved != 0 || dir.Type != icoTypeIcon {
		return nil, errors.New("not an ICO file")
	}

	images := make([]ICOImage, 0, dir.Count)
	for i := 0; i < int(dir.Count); i++ {
		var e icoEntry
		if err := binary.Read(r, binary.LittleEndian, &e); err != nil {
			return nil, fmt.Errorf("read ICO entry %d: %w", i, err)
		}
		w, h := int(e.Width), int(e.Height)
		if w == 0 {
			w = 256
		}
		if h == 0 {
			h = 256
		}
		images = append(images, ICOImage{Width: w, Height: h, Size: int(e.BytesInRes)})
	}
	return images, nil
}

// ReadICOFile is ReadICO on a path.
func ReadICOFile(path string) ([]ICOImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadICO(f)
}
