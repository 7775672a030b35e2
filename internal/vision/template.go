package vision

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrTemplateNotFound means a command asked for an asset that is not there.
var ErrTemplateNotFound = errors.New("template not found")

// LoadTemplate reads a png, jpeg, bmp or webp image as a BGR frame, or a
// gray one when gray is set.
func LoadTemplate(path string, gray bool) (Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Frame{}, errors.Wrapf(ErrTemplateNotFound, "%s", path)
		}
		return Frame{}, errors.Wrapf(err, "open template %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "decode template %s", path)
	}
	frame := FromImage(img)
	if gray {
		frame = frame.Gray()
	}
	return frame, nil
}

// Annotate saves src as a png with a magenta box around the match.
func Annotate(src Frame, m Match, w, h int, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "annotate dir")
	}
	dc := gg.NewContextForImage(src.Image())
	dc.SetRGB(1, 0, 1)
	dc.SetLineWidth(2)
	dc.DrawRectangle(float64(m.X), float64(m.Y), float64(w), float64(h))
	dc.Stroke()
	return errors.Wrap(dc.SavePNG(path), "save annotation")
}

// SavePNG writes the frame to path, creating the directory if needed.
func SavePNG(f Frame, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create image dir")
	}
	return errors.Wrap(gg.SavePNG(path, f.Image()), "save png")
}
