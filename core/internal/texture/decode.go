package texture

import (
	"fmt"
	"image"
	"image/color"

	"github.com/meigma/vpp/core/internal/vfstype"
)

// Format is a frame pixel format tag.
type Format uint16

// Known pixel formats.
const (
	FormatRGBA5551        Format = 0x3
	FormatRGBA32          Format = 0x7
	FormatRGBA5551Indexed Format = 0x104
	FormatRGBA32Indexed   Format = 0x204
)

func (f Format) String() string {
	switch f {
	case FormatRGBA5551:
		return "rgba5551"
	case FormatRGBA32:
		return "rgba32"
	case FormatRGBA5551Indexed:
		return "rgba5551-indexed"
	case FormatRGBA32Indexed:
		return "rgba32-indexed"
	default:
		return fmt.Sprintf("0x%X", uint16(f))
	}
}

// Supported reports whether Decode produces pixels for f.
func (f Format) Supported() bool {
	switch f {
	case FormatRGBA5551, FormatRGBA32, FormatRGBA5551Indexed, FormatRGBA32Indexed:
		return true
	default:
		return false
	}
}

const paletteEntries = 256

// Munge swaps bits 3 and 4 of a palette index. It is its own inverse.
func Munge(i int) int {
	return ((i >> 1) & 0x08) | ((i << 1) & 0x10) | (i & 0xE7)
}

// ARGB packs channels into a 0xAARRGGBB pixel.
func ARGB(a, r, g, b uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// unpack5551 expands a two-byte 5-5-5-1 word (gggrrrrr abbbbbgg) into ARGB.
func unpack5551(b0, b1 byte) uint32 {
	r := (b0 & 0x1F) << 3
	g := (((b0 & 0xE0) >> 5) | ((b1 & 0x03) << 3)) << 3
	b := (b1 & 0x7C) << 1
	var a uint8
	if b1&0x80 != 0 {
		a = 0xFF
	}
	return ARGB(a, r, g, b)
}

// Image is a decoded frame of ARGB32 pixels in row-major order.
type Image struct {
	Name   string
	Width  int
	Height int
	Format Format
	Pix    []uint32
}

var _ image.Image = (*Image)(nil)

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.NRGBA{}
	}
	p := m.Pix[y*m.Width+x]
	return color.NRGBA{R: uint8(p >> 16), G: uint8(p >> 8), B: uint8(p), A: uint8(p >> 24)}
}

// ARGBAt returns the packed pixel at (x, y).
func (m *Image) ARGBAt(x, y int) uint32 {
	return m.Pix[y*m.Width+x]
}

// Decode converts frame data of the given dimensions and format to pixels.
// Formats Decode does not know yield an empty image and no error.
//
// Dimensions come from the frame record and are not trusted: the pixel
// buffer is only allocated once data is known to cover it.
func Decode(data []byte, width, height int, format Format) (*Image, error) {
	var bpp, paletteSize int
	switch format {
	case FormatRGBA5551:
		bpp = 2
	case FormatRGBA32:
		bpp = 4
	case FormatRGBA5551Indexed:
		bpp, paletteSize = 1, paletteEntries*2
	case FormatRGBA32Indexed:
		bpp, paletteSize = 1, paletteEntries*4
	default:
		return &Image{Format: format}, nil
	}

	// Every known format spends at least one byte per pixel, so bounding
	// the pixel count by the data length keeps the products below in range.
	avail := max(len(data)-paletteSize, 0) / bpp
	if len(data) < paletteSize || width < 0 || height < 0 || (height > 0 && width > avail/height) {
		return nil, fmt.Errorf("%w: %s frame %dx%d needs more than the %d bytes present",
			vfstype.ErrTruncatedFrame, format, width, height, len(data))
	}
	n := width * height
	img := &Image{Width: width, Height: height, Format: format, Pix: make([]uint32, n)}
	switch format {
	case FormatRGBA5551:
		for i := range n {
			img.Pix[i] = unpack5551(data[i*2], data[i*2+1])
		}
	case FormatRGBA32:
		for i := range n {
			p := data[i*4:]
			img.Pix[i] = ARGB(0xFF, p[0], p[1], p[2])
		}
	case FormatRGBA5551Indexed:
		palette := palette5551(data)
		for i, idx := range data[paletteEntries*2 : paletteEntries*2+n] {
			img.Pix[i] = palette[idx]
		}
	case FormatRGBA32Indexed:
		palette := palette32(data)
		for i, idx := range data[paletteEntries*4 : paletteEntries*4+n] {
			img.Pix[i] = palette[idx]
		}
	}
	return img, nil
}

// palette5551 stores entry i at slot Munge(i).
func palette5551(data []byte) *[paletteEntries]uint32 {
	var palette [paletteEntries]uint32
	for i := range paletteEntries {
		palette[Munge(i)] = unpack5551(data[i*2], data[i*2+1])
	}
	return &palette
}

// palette32 reads R,G,B,A entries and loads slot i from entry Munge(i).
// Alpha is forced opaque.
func palette32(data []byte) *[paletteEntries]uint32 {
	var palette [paletteEntries]uint32
	for i := range paletteEntries {
		p := data[Munge(i)*4:]
		palette[i] = ARGB(0xFF, p[0], p[1], p[2])
	}
	return &palette
}
