package wall

import (
	"camwall/internal/hls"
	"camwall/internal/platform/clock"
	"camwall/internal/playback"
)

// Poster is a headless thumbnail surface holding the last loaded image and
// any message shown over it.
type Poster struct {
	visible bool
	image   playback.Image
	message string
}

func (p *Poster) Show()                       { p.visible = true }
func (p *Poster) Hide()                       { p.visible = false }
func (p *Poster) SetImage(img playback.Image) { p.image = img }
func (p *Poster) ShowError(message string)    { p.message = message }
func (p *Poster) ClearError()                 { p.message = "" }

// Surfaces hands out one video Surface and one Poster per camera. It is not
// safe for concurrent use; the owning loop serializes access.
type Surfaces struct {
	clk       clock.Clock
	frameRate float64
	videos    map[string]*hls.Surface
	posters   map[string]*Poster
}

// NewSurfaces returns an empty provider.
func NewSurfaces(clk clock.Clock, frameRate float64) *Surfaces {
	return &Surfaces{
		clk:       clk,
		frameRate: frameRate,
		videos:    make(map[string]*hls.Surface),
		posters:   make(map[string]*Poster),
	}
}

func (s *Surfaces) VideoSurface(id string) playback.VideoSurface {
	v := hls.NewSurface(s.clk, s.frameRate)
	s.videos[id] = v
	return v
}

func (s *Surfaces) ThumbnailSurface(id string) playback.ThumbnailSurface {
	p := &Poster{}
	s.posters[id] = p
	return p
}

func (s *Surfaces) Release(id string) {
	delete(s.videos, id)
	delete(s.posters, id)
}
