package vision

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Match is the best placement of a template inside a search image.
type Match struct {
	Score float64
	X, Y  int
}

// Matcher scores a template against every placement in src.
type Matcher interface {
	Match(src, tmpl Frame) (Match, error)
}

// NCC is zero-mean normalized cross-correlation (OpenCV's TM_CCOEFF_NORMED).
// Scores are in [-1, 1]; 1 is a perfect match.
//
// The correlation numerator is computed for all placements at once
// through a 2D FFT, so a check costs about the same for any template
// size.
//
// When the template or the window has no variance the correlation is
// undefined. Two flat patches of the same level score 1, anything else
// scores 0.
type NCC struct{}

const flatEpsilon = 1e-6

func (NCC) Match(src, tmpl Frame) (Match, error) {
	if src.Channels != tmpl.Channels {
		return Match{}, errors.Errorf("channel mismatch: image %d, template %d", src.Channels, tmpl.Channels)
	}
	if tmpl.Empty() || tmpl.Width > src.Width || tmpl.Height > src.Height {
		return Match{}, errors.Errorf("template %dx%d does not fit image %dx%d",
			tmpl.Width, tmpl.Height, src.Width, src.Height)
	}

	ch := src.Channels
	area := int64(tmpl.Width * tmpl.Height)
	n := float64(area)

	// zero-mean template per channel
	tMean := make([]float64, ch)
	for i, v := range tmpl.Pix {
		tMean[i%ch] += float64(v)
	}
	for c := range tMean {
		tMean[c] /= n
	}
	tz := make([]float64, len(tmpl.Pix))
	var tNorm2 float64
	for i, v := range tmpl.Pix {
		d := float64(v) - tMean[i%ch]
		tz[i] = d
		tNorm2 += d * d
	}
	tFlat := tNorm2 < flatEpsilon

	sum, sq := integrals(src)
	stride := (src.Width + 1) * ch
	num, numStride := crossCorrelate(src, tz, tmpl.Width, tmpl.Height)

	best := Match{Score: math.Inf(-1)}
	wMean := make([]float64, ch)
	for y := 0; y+tmpl.Height <= src.Height; y++ {
		for x := 0; x+tmpl.Width <= src.Width; x++ {
			var wVar float64
			for c := 0; c < ch; c++ {
				s := rect(sum, stride, ch, c, x, y, tmpl.Width, tmpl.Height)
				s2 := rect(sq, stride, ch, c, x, y, tmpl.Width, tmpl.Height)
				wMean[c] = float64(s) / n
				// exact in integers, so a flat window is exactly 0
				wVar += float64(area*s2-s*s) / n
			}

			var score float64
			switch {
			case tFlat || wVar < flatEpsilon:
				score = flatScore(tFlat, wVar < flatEpsilon, tMean, wMean)
			default:
				score = num[y*numStride+x] / math.Sqrt(tNorm2*wVar)
				score = math.Max(-1, math.Min(1, score))
			}

			if score > best.Score {
				best = Match{Score: score, X: x, Y: y}
			}
		}
	}
	return best, nil
}

func flatScore(tFlat, wFlat bool, tMean, wMean []float64) float64 {
	if !tFlat || !wFlat {
		return 0
	}
	for c := range tMean {
		if math.Abs(tMean[c]-wMean[c]) >= 0.5 {
			return 0
		}
	}
	return 1
}

// integrals builds per-channel summed area tables of values and squares,
// (w+1)x(h+1) with a zero first row and column.
func integrals(f Frame) (sum, sq []int64) {
	ch := f.Channels
	stride := (f.Width + 1) * ch
	sum = make([]int64, stride*(f.Height+1))
	sq = make([]int64, stride*(f.Height+1))
	rowSum := make([]int64, ch)
	rowSq := make([]int64, ch)
	for y := 0; y < f.Height; y++ {
		for c := range rowSum {
			rowSum[c], rowSq[c] = 0, 0
		}
		for x := 0; x < f.Width; x++ {
			for c := 0; c < ch; c++ {
				v := int64(f.Pix[f.offset(x, y)+c])
				rowSum[c] += v
				rowSq[c] += v * v
				i := (y+1)*stride + (x+1)*ch + c
				sum[i] = sum[i-stride] + rowSum[c]
				sq[i] = sq[i-stride] + rowSq[c]
			}
		}
	}
	return sum, sq
}

func rect(tbl []int64, stride, ch, c, x, y, w, h int) int64 {
	at := func(xx, yy int) int64 { return tbl[yy*stride+xx*ch+c] }
	return at(x+w, y+h) - at(x, y+h) - at(x+w, y) + at(x, y)
}

// crossCorrelate returns, for every placement (x, y) of a w x h template,
// the sum over the window of tz times the source samples, summed over
// channels. Results are laid out with the returned row stride; only
// placements that fit inside src are meaningful.
//
// The products are taken in the frequency domain: the transform is at
// least as large as src, so the circular wrap never reaches a placement
// that fits.
func crossCorrelate(src Frame, tz []float64, w, h int) ([]float64, int) {
	ch := src.Channels
	p := newPlan2D(src.Width, src.Height)
	size := p.nx * p.ny
	acc := make([]complex128, size)
	s := make([]complex128, size)
	t := make([]complex128, size)

	for c := 0; c < ch; c++ {
		clear(s)
		clear(t)
		for y := 0; y < src.Height; y++ {
			for x := 0; x < src.Width; x++ {
				s[y*p.nx+x] = complex(float64(src.Pix[src.offset(x, y)+c]), 0)
			}
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				t[y*p.nx+x] = complex(tz[(y*w+x)*ch+c], 0)
			}
		}
		p.transform(s, false)
		p.transform(t, false)
		for i := range acc {
			acc[i] += cmplx.Conj(t[i]) * s[i]
		}
	}
	p.transform(acc, true)

	gain := roundTrip(p.rows) * roundTrip(p.cols)
	out := make([]float64, size)
	for i, v := range acc {
		out[i] = real(v) / gain
	}
	return out, p.nx
}

// plan2D is a separable 2D transform: rows, then columns.
type plan2D struct {
	nx, ny     int
	rows, cols *fourier.CmplxFFT
	rowOut     []complex128
	col        []complex128
	colOut     []complex128
}

func newPlan2D(w, h int) *plan2D {
	nx, ny := smoothSize(w), smoothSize(h)
	return &plan2D{
		nx:     nx,
		ny:     ny,
		rows:   fourier.NewCmplxFFT(nx),
		cols:   fourier.NewCmplxFFT(ny),
		rowOut: make([]complex128, nx),
		col:    make([]complex128, ny),
		colOut: make([]complex128, ny),
	}
}

func (p *plan2D) transform(data []complex128, inverse bool) {
	for y := 0; y < p.ny; y++ {
		row := data[y*p.nx : (y+1)*p.nx]
		if inverse {
			p.rows.Sequence(p.rowOut, row)
		} else {
			p.rows.Coefficients(p.rowOut, row)
		}
		copy(row, p.rowOut)
	}
	for x := 0; x < p.nx; x++ {
		for y := 0; y < p.ny; y++ {
			p.col[y] = data[y*p.nx+x]
		}
		if inverse {
			p.cols.Sequence(p.colOut, p.col)
		} else {
			p.cols.Coefficients(p.colOut, p.col)
		}
		for y := 0; y < p.ny; y++ {
			data[y*p.nx+x] = p.colOut[y]
		}
	}
}

// roundTrip is the factor a forward then inverse transform leaves on a
// sequence.
func roundTrip(f *fourier.CmplxFFT) float64 {
	unit := make([]complex128, f.Len())
	unit[0] = 1
	return real(f.Sequence(nil, f.Coefficients(nil, unit))[0])
}

// smoothSize is the smallest n >= v whose only prime factors are 2, 3
// and 5. Capture sizes (1280, 720, 1920, 1080) already are.
func smoothSize(v int) int {
	for n := v; ; n++ {
		k := n
		for _, f := range []int{2, 3, 5} {
			for k%f == 0 {
				k /= f
			}
		}
		if k == 1 {
			return n
		}
	}
}
