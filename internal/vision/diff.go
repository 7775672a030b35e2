package vision

import (
	"sort"

	"github.com/pkg/errors"
)

// InterframeDiff finds what moved across three consecutive frames:
// |a-b| AND |b-c|, binarized (> threshold becomes 255), then a 3x3 median
// filter to drop isolated pixels. Works per channel.
func InterframeDiff(a, b, c Frame, threshold uint8) (Frame, error) {
	if !a.SameShape(b) || !b.SameShape(c) {
		return Frame{}, errors.Errorf("frame shapes differ: %dx%dx%d, %dx%dx%d, %dx%dx%d",
			a.Width, a.Height, a.Channels, b.Width, b.Height, b.Channels, c.Width, c.Height, c.Channels)
	}

	bin := NewFrame(a.Width, a.Height, a.Channels)
	for i := range bin.Pix {
		d := absDiff(a.Pix[i], b.Pix[i]) & absDiff(b.Pix[i], c.Pix[i])
		if d > threshold {
			bin.Pix[i] = 255
		}
	}
	return MedianBlur3(bin), nil
}

func absDiff(x, y byte) byte {
	if x > y {
		return x - y
	}
	return y - x
}

// MedianBlur3 applies a 3x3 median filter, replicating edge pixels.
func MedianBlur3(f Frame) Frame {
	out := NewFrame(f.Width, f.Height, f.Channels)
	var win [9]byte
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			for c := 0; c < f.Channels; c++ {
				k := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						win[k] = f.At(clamp(x+dx, f.Width), clamp(y+dy, f.Height), c)
						k++
					}
				}
				s := win[:]
				sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
				out.Set(x, y, c, s[4])
			}
		}
	}
	return out
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// CountNonZero counts non-zero samples, a cheap motion measure for masks.
func CountNonZero(f Frame) int {
	n := 0
	for _, v := range f.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}
