package vision

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func noise(w, h, ch int, seed int64) Frame {
	r := rand.New(rand.NewSource(seed))
	f := NewFrame(w, h, ch)
	r.Read(f.Pix)
	return f
}

func TestNCCSolidFrame(t *testing.T) {
	src := NewFrame(40, 30, 3)
	src.Fill(30, 200, 90)
	tmpl, err := src.Crop(Region{X0: 5, X1: 15, Y0: 5, Y1: 12})
	if err != nil {
		t.Fatal(err)
	}

	m, err := NCC{}.Match(src, tmpl)
	if err != nil {
		t.Fatal(err)
	}
	if m.Score <= 0.7 {
		t.Errorf("identical solid template scored %v", m.Score)
	}

	m, err = NCC{}.Match(src, noise(10, 7, 3, 7))
	if err != nil {
		t.Fatal(err)
	}
	if m.Score > 0.7 {
		t.Errorf("noise template scored %v against solid frame", m.Score)
	}
}

func TestNCCFindsLocation(t *testing.T) {
	for _, ch := range []int{1, 3} {
		src := noise(48, 32, ch, 1)
		tmpl, _ := src.Crop(Region{X0: 21, X1: 33, Y0: 9, Y1: 19})
		m, err := NCC{}.Match(src, tmpl)
		if err != nil {
			t.Fatal(err)
		}
		if m.X != 21 || m.Y != 9 {
			t.Errorf("%d channels: found at (%d,%d), want (21,9)", ch, m.X, m.Y)
		}
		if math.Abs(m.Score-1) > 1e-9 {
			t.Errorf("%d channels: exact crop scored %v", ch, m.Score)
		}

		other, _ := NCC{}.Match(src, noise(12, 10, ch, 99))
		if other.Score > 0.7 {
			t.Errorf("%d channels: unrelated noise scored %v", ch, other.Score)
		}
	}
}

func TestCrossCorrelateMatchesDirectSum(t *testing.T) {
	for _, ch := range []int{1, 3} {
		src := noise(23, 17, ch, 4)
		w, h := 5, 4
		r := rand.New(rand.NewSource(8))
		tz := make([]float64, w*h*ch)
		for i := range tz {
			tz[i] = r.Float64()*2 - 1
		}

		num, stride := crossCorrelate(src, tz, w, h)
		for y := 0; y+h <= src.Height; y++ {
			for x := 0; x+w <= src.Width; x++ {
				var want float64
				for ty := 0; ty < h; ty++ {
					for tx := 0; tx < w; tx++ {
						for c := 0; c < ch; c++ {
							want += tz[(ty*w+tx)*ch+c] * float64(src.At(x+tx, y+ty, c))
						}
					}
				}
				if got := num[y*stride+x]; math.Abs(got-want) > 1e-6 {
					t.Fatalf("%d channels at (%d,%d): %v, want %v", ch, x, y, got, want)
				}
			}
		}
	}
}

func TestSmoothSize(t *testing.T) {
	for v, want := range map[int]int{1: 1, 7: 8, 23: 24, 17: 18, 720: 720, 1280: 1280, 1081: 1125} {
		if got := smoothSize(v); got != want {
			t.Errorf("smoothSize(%d) = %d, want %d", v, got, want)
		}
	}
}

func BenchmarkNCCCapture(b *testing.B) {
	for _, ch := range []int{1, 3} {
		src := noise(1280, 720, ch, 1)
		tmpl, _ := src.Crop(Region{X0: 600, X1: 660, Y0: 300, Y1: 360})
		b.Run(map[int]string{1: "gray", 3: "color"}[ch], func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				m, err := NCC{}.Match(src, tmpl)
				if err != nil || m.X != 600 || m.Y != 300 {
					b.Fatalf("match = %+v, %v", m, err)
				}
			}
		})
	}
}

func TestNCCErrors(t *testing.T) {
	src := NewFrame(10, 10, 3)
	if _, err := (NCC{}).Match(src, NewFrame(4, 4, 1)); err == nil {
		t.Error("expected channel mismatch error")
	}
	if _, err := (NCC{}).Match(src, NewFrame(11, 4, 3)); err == nil {
		t.Error("expected size error")
	}
}

func TestGray(t *testing.T) {
	f := NewFrame(2, 1, 3)
	f.Fill(255, 255, 255)
	f.Set(1, 0, 0, 0)
	f.Set(1, 0, 1, 0)
	f.Set(1, 0, 2, 255) // pure red in BGR
	g := f.Gray()
	if g.Channels != 1 || g.Pix[0] != 255 {
		t.Errorf("white -> %v", g.Pix)
	}
	if g.Pix[1] != 76 {
		t.Errorf("red -> %d, want 76", g.Pix[1])
	}
}

func TestCrop(t *testing.T) {
	f := noise(8, 6, 3, 3)
	c, err := f.Crop(Region{X0: 2, X1: 5, Y0: 1, Y1: 4})
	if err != nil {
		t.Fatal(err)
	}
	if c.Width != 3 || c.Height != 3 {
		t.Fatalf("crop size %dx%d", c.Width, c.Height)
	}
	if c.At(0, 0, 2) != f.At(2, 1, 2) || c.At(2, 2, 0) != f.At(4, 3, 0) {
		t.Error("crop pixels do not line up")
	}
	if same, _ := f.Crop(Region{}); !same.SameShape(f) {
		t.Error("zero region must return the whole frame")
	}
	if _, err := f.Crop(Region{X0: 0, X1: 9, Y0: 0, Y1: 2}); err == nil {
		t.Error("expected out of bounds error")
	}
}

func TestInterframeDiffStill(t *testing.T) {
	a := noise(20, 15, 3, 5)
	mask, err := InterframeDiff(a, a.Clone(), a.Clone(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if n := CountNonZero(mask); n != 0 {
		t.Errorf("identical frames left %d non-zero samples", n)
	}
}

func TestInterframeDiffMotion(t *testing.T) {
	mk := func(x0 int) Frame {
		f := NewFrame(30, 20, 1)
		for y := 5; y < 15; y++ {
			for x := x0; x < x0+8; x++ {
				f.Set(x, y, 0, 255)
			}
		}
		return f
	}
	mask, err := InterframeDiff(mk(2), mk(10), mk(18), 50)
	if err != nil {
		t.Fatal(err)
	}
	if CountNonZero(mask) == 0 {
		t.Error("moving block produced an empty mask")
	}

	if _, err := InterframeDiff(mk(2), NewFrame(30, 20, 3), mk(2), 50); err == nil {
		t.Error("expected shape error")
	}
}

func TestMedianDropsSpeck(t *testing.T) {
	f := NewFrame(5, 5, 1)
	f.Set(2, 2, 0, 255)
	if n := CountNonZero(MedianBlur3(f)); n != 0 {
		t.Errorf("single pixel survived median: %d", n)
	}
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mark.png")
	src := noise(6, 4, 3, 11)
	if err := SavePNG(src, path); err != nil {
		t.Fatal(err)
	}

	got, err := LoadTemplate(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SameShape(src) {
		t.Fatalf("loaded %dx%dx%d", got.Width, got.Height, got.Channels)
	}
	for i := range src.Pix {
		if got.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel byte %d: %d != %d", i, got.Pix[i], src.Pix[i])
		}
	}

	gray, err := LoadTemplate(path, true)
	if err != nil || gray.Channels != 1 {
		t.Errorf("gray load: %v channels=%d", err, gray.Channels)
	}

	_, err = LoadTemplate(filepath.Join(dir, "missing.png"), true)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("missing template error = %v", err)
	}
}

func TestAnnotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "match.png")
	if err := Annotate(noise(20, 20, 1, 2), Match{Score: 0.9, X: 3, Y: 4}, 5, 5, path); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTemplate(path, false); err != nil {
		t.Errorf("annotation not readable: %v", err)
	}
}
