package command

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pokecon/internal/capture"
	"pokecon/internal/vision"
)

// DEFAULT_THRESHOLD is the match score a template must exceed.
const DEFAULT_THRESHOLD = 0.7

type matchConfig struct {
	threshold      float64
	color          bool
	showScore      bool
	searchRegion   vision.Region
	templateRegion vision.Region
}

// MatchOption tunes IsContainTemplate.
type MatchOption func(*matchConfig)

func Threshold(v float64) MatchOption {
	return func(c *matchConfig) { c.threshold = v }
}

// Color matches in BGR instead of grayscale. Slower; use it only when the
// template's color matters.
func Color() MatchOption {
	return func(c *matchConfig) { c.color = true }
}

// ShowScore logs the raw score of every check.
func ShowScore() MatchOption {
	return func(c *matchConfig) { c.showScore = true }
}

// SearchRegion restricts the search to part of the frame.
func SearchRegion(r vision.Region) MatchOption {
	return func(c *matchConfig) { c.searchRegion = r }
}

// TemplateRegion uses only part of the template image.
func TemplateRegion(r vision.Region) MatchOption {
	return func(c *matchConfig) { c.templateRegion = r }
}

func (s *Session) frames() (capture.Source, error) {
	if s.cmd.def.Kind != ImageAware || s.cmd.env.frames == nil {
		return nil, ErrNotImageAware
	}
	return s.cmd.env.frames, nil
}

// FramesOpen reports whether the frame source still delivers frames.
func (s *Session) FramesOpen() bool {
	src, err := s.frames()
	return err == nil && src.IsOpen()
}

// ReadFrame returns the latest captured frame.
func (s *Session) ReadFrame() (vision.Frame, bool, error) {
	src, err := s.frames()
	if err != nil {
		return vision.Frame{}, false, err
	}
	f, ok := src.Read()
	return f, ok, nil
}

// IsContainTemplate grabs a frame and reports whether the named template
// (relative to the templates directory) appears in it with a score above
// the threshold. A missing template is an error; a missing frame is not,
// it just does not match. A stop requested before or during the match
// returns ErrStopped.
func (s *Session) IsContainTemplate(name string, opts ...MatchOption) (bool, error) {
	if err := s.checkpoint(); err != nil {
		return false, err
	}
	cfg := matchConfig{threshold: DEFAULT_THRESHOLD}
	for _, opt := range opts {
		opt(&cfg)
	}

	src, err := s.frames()
	if err != nil {
		return false, err
	}
	frame, ok := src.Read()
	if !ok {
		s.log.Warn().Str("template", name).Msg("no frame to match against")
		return false, nil
	}
	if !cfg.color {
		frame = frame.Gray()
	}
	if frame, err = frame.Crop(cfg.searchRegion); err != nil {
		return false, err
	}

	tmpl, err := vision.LoadTemplate(filepath.Join(s.cmd.env.templates, name), !cfg.color)
	if err != nil {
		return false, err
	}
	if tmpl, err = tmpl.Crop(cfg.templateRegion); err != nil {
		return false, err
	}

	m, err := s.cmd.env.matcher.Match(frame, tmpl)
	if err != nil {
		return false, err
	}
	if err := s.checkpoint(); err != nil {
		return false, err
	}
	if cfg.showScore {
		s.log.Info().Str("template", name).Float64("score", m.Score).Msg("ZNCC value")
	}
	if m.Score <= cfg.threshold {
		return false, nil
	}

	if dir := s.cmd.env.annotate; dir != "" {
		out := filepath.Join(dir, fmt.Sprintf("%s_%s.png",
			strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)),
			time.Now().Format("20060102150405.000")))
		if err := vision.Annotate(frame, m, tmpl.Width, tmpl.Height, out); err != nil {
			s.log.Warn().Err(err).Msg("annotate match")
		}
	}
	return true, nil
}

// InterframeDiff returns the motion mask of three consecutive frames.
func (s *Session) InterframeDiff(a, b, c vision.Frame, threshold uint8) (vision.Frame, error) {
	if _, err := s.frames(); err != nil {
		return vision.Frame{}, err
	}
	return vision.InterframeDiff(a, b, c, threshold)
}

// Screenshot saves the latest frame to the screenshot directory.
func (s *Session) Screenshot() (string, error) {
	src, err := s.frames()
	if err != nil {
		return "", err
	}
	return capture.SaveScreenshot(src, s.cmd.env.screenshots)
}
