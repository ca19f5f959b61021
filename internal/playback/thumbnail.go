package playback

import (
	"log/slog"
	"strconv"
	"time"

	"camwall/internal/platform/clock"
)

const (
	msgRetry       = "Stream failed to load. Click thumbnail to retry."
	msgUnsupported = "HLS not supported."
)

// Image is a decoded-agnostic poster image.
type Image struct {
	Data        []byte
	ContentType string
}

// ThumbnailSurface is the poster element shown while video is not confirmed.
type ThumbnailSurface interface {
	Show()
	Hide()
	SetImage(img Image)
	ShowError(message string)
	ClearError()
}

// ImageLoader fetches images asynchronously. done must run on the session
// goroutine.
type ImageLoader interface {
	LoadImage(url string, done func(Image, error))
}

// ThumbnailURLFunc builds a poster URL from a cache-busting token.
type ThumbnailURLFunc func(bust string) string

// Thumbnail keeps a periodically refreshed poster image on its surface and
// forwards clicks. It knows nothing about playback state beyond being told
// to show or hide.
type Thumbnail struct {
	surface    ThumbnailSurface
	loader     ImageLoader
	url        ThumbnailURLFunc
	clk        clock.Clock
	log        *slog.Logger
	refreshDur time.Duration
	retryDur   time.Duration
	onClick    func()

	refresh   clock.Timer
	retry     clock.Timer
	retried   bool
	seq       uint64
	visible   bool
	loaded    bool
	destroyed bool
}

func newThumbnail(surface ThumbnailSurface, loader ImageLoader, url ThumbnailURLFunc, clk clock.Clock, opts Options, log *slog.Logger, onClick func()) *Thumbnail {
	return &Thumbnail{
		surface:    surface,
		loader:     loader,
		url:        url,
		clk:        clk,
		log:        log,
		refreshDur: opts.ThumbnailRefreshInterval,
		retryDur:   opts.ThumbnailRetryDelay,
		onClick:    onClick,
	}
}

// Start loads the poster and arms the refresh timer.
func (t *Thumbnail) Start() {
	if t.destroyed || t.refresh != nil {
		return
	}
	t.load()
	t.refresh = t.clk.Every(t.refreshDur, t.load)
}

// load begins a refresh cycle; a failed fetch gets one retry per cycle.
func (t *Thumbnail) load() {
	if t.destroyed || t.loader == nil || t.url == nil {
		return
	}
	t.retried = false
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
	t.fetch()
}

func (t *Thumbnail) fetch() {
	t.seq++
	seq := t.seq
	u := t.url(strconv.FormatInt(t.clk.Now().UnixMilli(), 10))
	t.loader.LoadImage(u, func(img Image, err error) {
		t.onLoaded(seq, img, err)
	})
}

func (t *Thumbnail) onLoaded(seq uint64, img Image, err error) {
	if t.destroyed || seq != t.seq {
		return
	}
	if err != nil {
		if t.retried {
			t.log.Warn("thumbnail load failed", slog.String("error", err.Error()))
			return
		}
		t.retried = true
		t.log.Debug("thumbnail load failed, retrying", slog.String("error", err.Error()), slog.Duration("delay", t.retryDur))
		t.retry = t.clk.AfterFunc(t.retryDur, func() {
			t.retry = nil
			if !t.destroyed {
				t.fetch()
			}
		})
		return
	}
	t.loaded = true
	t.surface.SetImage(img)
}

// Show displays the poster.
func (t *Thumbnail) Show() {
	t.visible = true
	t.surface.Show()
}

// Hide hides the poster.
func (t *Thumbnail) Hide() {
	t.visible = false
	t.surface.Hide()
}

// ShowError displays a persistent message over the poster.
func (t *Thumbnail) ShowError(msg string) { t.surface.ShowError(msg) }

// ClearError removes the message.
func (t *Thumbnail) ClearError() { t.surface.ClearError() }

// Visible reports whether the poster is currently shown.
func (t *Thumbnail) Visible() bool { return t.visible }

// Click forwards a user click to the owning session.
func (t *Thumbnail) Click() {
	if t.destroyed || t.onClick == nil {
		return
	}
	t.onClick()
}

// Destroy cancels timers. Responses arriving afterwards are ignored.
func (t *Thumbnail) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	if t.refresh != nil {
		t.refresh.Stop()
		t.refresh = nil
	}
	if t.retry != nil {
		t.retry.Stop()
		t.retry = nil
	}
}

func (t *Thumbnail) timerCount() int {
	n := 0
	if t.refresh != nil {
		n++
	}
	if t.retry != nil {
		n++
	}
	return n
}
