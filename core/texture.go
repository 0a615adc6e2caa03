package vpp

import (
	"errors"
	"fmt"
	"image/png"
	"io"

	"github.com/meigma/vpp/core/internal/texture"
)

// Image is a decoded texture frame. It implements image.Image.
type Image = texture.Image

// PixelFormat is the pixel format tag of a texture frame.
type PixelFormat = texture.Format

// Supported pixel formats.
const (
	FormatRGBA5551        = texture.FormatRGBA5551
	FormatRGBA32          = texture.FormatRGBA32
	FormatRGBA5551Indexed = texture.FormatRGBA5551Indexed
	FormatRGBA32Indexed   = texture.FormatRGBA32Indexed
)

// Munge returns the palette slot permutation applied to indexed formats.
// It is its own inverse.
func Munge(i int) int { return texture.Munge(i) }

// acquire returns the bytes of e together with a release func that must be
// called once the bytes are no longer used. The bytes stay mapped until
// release even if the VFS is cleared meanwhile.
func (v *VFS) acquire(e EntryView) ([]byte, func(), error) {
	if e.v != v {
		return nil, nil, fmt.Errorf("%w: entry belongs to another VFS", ErrCleared)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if e.gen != v.gen || e.h < 0 || int(e.h) >= len(v.nodes) {
		return nil, nil, ErrCleared
	}
	n := &v.nodes[e.h]
	m := v.maps[n.backing]
	if !m.Acquire() {
		return nil, nil, ErrCleared
	}
	data := m.Bytes()[n.offsetInRoot : n.offsetInRoot+n.size]
	return data, func() { _ = m.Release() }, nil //nolint:errcheck // unmap errors are not actionable here
}

// DecodeFrame decodes the texture frame e into ARGB pixels.
//
// e must be a child of a texture container. Frames with an unknown pixel
// format decode to a zeroed image without error.
func (v *VFS) DecodeFrame(e EntryView) (*Image, error) {
	parent, ok := e.Parent()
	if !ok {
		if !e.Valid() {
			return nil, ErrCleared
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFrame, e.AbsolutePath())
	}
	if parent.Extension() != TextureExtension {
		return nil, fmt.Errorf("%w: %s", ErrNotFrame, e.AbsolutePath())
	}

	data, release, err := v.acquire(parent)
	if err != nil {
		return nil, err
	}
	defer release()

	name := parent.AbsolutePath()
	h, err := texture.ReadHeader(name, data)
	if err != nil {
		return nil, err
	}
	frames, err := texture.ReadFrames(name, h, data)
	if err != nil {
		return nil, err
	}
	idx := e.Index()
	if idx < 0 || idx >= len(frames) {
		return nil, fmt.Errorf("%w: %s has no frame %d", ErrNotFrame, name, idx)
	}
	f := &frames[idx]

	off := e.OffsetInParent()
	img, err := texture.Decode(data[off:off+e.Size()], int(f.Width), int(f.Height), f.Format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.AbsolutePath(), err)
	}
	img.Name = f.Name
	return img, nil
}

// DecodeFrames decodes every frame of the texture container peg in order.
// Frames that fail to decode are left out and their errors joined.
func (v *VFS) DecodeFrames(peg EntryView) ([]*Image, error) {
	if !peg.Valid() {
		return nil, ErrCleared
	}
	if peg.Extension() != TextureExtension {
		return nil, fmt.Errorf("%w: %s is not a texture container", ErrNotFrame, peg.AbsolutePath())
	}
	children := peg.Children()
	images := make([]*Image, 0, len(children))
	var errs []error
	for _, c := range children {
		img, err := v.DecodeFrame(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		images = append(images, img)
	}
	return images, errors.Join(errs...)
}

// EncodePNG writes img to w as a PNG.
func EncodePNG(w io.Writer, img *Image) error {
	return png.Encode(w, img)
}
