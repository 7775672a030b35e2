// Package vision holds the frame type shared by capture sources and the
// image checks commands run on them: template matching and interframe
// differences.
package vision

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Frame is a packed pixel buffer, row major. Three channel frames are in
// BGR order; one channel frames are grayscale.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// NewFrame allocates a zeroed frame.
func NewFrame(w, h, channels int) Frame {
	return Frame{Width: w, Height: h, Channels: channels, Pix: make([]byte, w*h*channels)}
}

// Empty reports whether the frame has no pixels.
func (f Frame) Empty() bool {
	return f.Width == 0 || f.Height == 0 || len(f.Pix) == 0
}

func (f Frame) offset(x, y int) int {
	return (y*f.Width + x) * f.Channels
}

// At returns channel ch of pixel (x, y).
func (f Frame) At(x, y, ch int) byte {
	return f.Pix[f.offset(x, y)+ch]
}

// Set writes channel ch of pixel (x, y).
func (f Frame) Set(x, y, ch int, v byte) {
	f.Pix[f.offset(x, y)+ch] = v
}

// Fill sets every pixel to the given channel values.
func (f Frame) Fill(v ...byte) {
	for i := 0; i < len(f.Pix); i += f.Channels {
		copy(f.Pix[i:i+f.Channels], v)
	}
}

// Clone returns a deep copy.
func (f Frame) Clone() Frame {
	out := f
	out.Pix = append([]byte(nil), f.Pix...)
	return out
}

// SameShape reports whether both frames have equal size and channel count.
func (f Frame) SameShape(o Frame) bool {
	return f.Width == o.Width && f.Height == o.Height && f.Channels == o.Channels
}

// Gray converts a BGR frame to grayscale with the usual BT.601 weights in
// fixed point. Gray frames are returned as is.
func (f Frame) Gray() Frame {
	if f.Channels == 1 {
		return f
	}
	out := NewFrame(f.Width, f.Height, 1)
	for i, j := 0, 0; j < len(out.Pix); i, j = i+f.Channels, j+1 {
		b, g, r := uint32(f.Pix[i]), uint32(f.Pix[i+1]), uint32(f.Pix[i+2])
		out.Pix[j] = byte((r*4899 + g*9617 + b*1868 + 8192) >> 14)
	}
	return out
}

// Region is a crop rectangle given as column and row ranges, [X0,X1) by
// [Y0,Y1). The zero Region means "whole frame".
type Region struct {
	X0, X1 int
	Y0, Y1 int
}

func (r Region) IsZero() bool {
	return r == Region{}
}

// Crop copies the region out of the frame.
func (f Frame) Crop(r Region) (Frame, error) {
	if r.IsZero() {
		return f, nil
	}
	if r.X0 < 0 || r.Y0 < 0 || r.X1 > f.Width || r.Y1 > f.Height || r.X0 >= r.X1 || r.Y0 >= r.Y1 {
		return Frame{}, errors.Errorf("region %+v outside %dx%d frame", r, f.Width, f.Height)
	}
	out := NewFrame(r.X1-r.X0, r.Y1-r.Y0, f.Channels)
	rowLen := out.Width * f.Channels
	for y := 0; y < out.Height; y++ {
		src := f.offset(r.X0, r.Y0+y)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], f.Pix[src:src+rowLen])
	}
	return out, nil
}

// FromImage converts any image to a BGR frame.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	out := NewFrame(b.Dx(), b.Dy(), 3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.B, c.G, c.R
			i += 3
		}
	}
	return out
}

// Image converts the frame back to a standard image for encoding.
func (f Frame) Image() image.Image {
	if f.Channels == 1 {
		img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
		copy(img.Pix, f.Pix)
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+f.Channels, j+4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = f.Pix[i+2], f.Pix[i+1], f.Pix[i], 0xff
	}
	return img
}
