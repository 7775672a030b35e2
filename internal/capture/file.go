package capture

import (
	"context"
	"image"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"pokecon/internal/vision"
)

// FileSource polls an image file that an external grabber keeps
// overwriting (for example ffmpeg writing a snapshot of the capture card)
// and publishes each new version as the latest frame.
type FileSource struct {
	*Latest

	Path     string
	Interval time.Duration

	modTime time.Time
	size    int64
}

func NewFileSource(path string, interval time.Duration) *FileSource {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &FileSource{Latest: NewLatest(), Path: path, Interval: interval}
}

// Run polls until ctx is done, then closes the source.
func (s *FileSource) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	defer s.Close()

	log.Info().Str("path", s.Path).Dur("interval", s.Interval).Msg("capture started")
	for {
		s.poll()
		select {
		case <-ctx.Done():
			log.Info().Str("path", s.Path).Msg("capture stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *FileSource) poll() {
	st, err := os.Stat(s.Path)
	if err != nil {
		return
	}
	if st.ModTime().Equal(s.modTime) && st.Size() == s.size {
		return
	}

	f, err := os.Open(s.Path)
	if err != nil {
		log.Debug().Err(err).Str("path", s.Path).Msg("capture open")
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		// the grabber may be mid-write; try again next tick
		log.Debug().Err(err).Str("path", s.Path).Msg("capture decode")
		return
	}
	s.modTime, s.size = st.ModTime(), st.Size()
	s.Push(vision.FromImage(img))
}
