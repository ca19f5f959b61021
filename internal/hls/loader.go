package hls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"camwall/internal/playback"

	"github.com/grafov/m3u8"
	"github.com/hashicorp/go-retryablehttp"
)

// loader runs on its own goroutine for one StartLoad. It owns copies of the
// engine state it needs and reports back only through Engine.deliver.
type loader struct {
	e    *Engine
	run  uint64
	hc   *retryablehttp.Client
	opts Options
	log  *slog.Logger

	source  string
	levels  []playback.Level
	level   int
	lastSeq int64
	want    *atomic.Int64
}

func (l *loader) post(fn func(e *Engine)) {
	e := l.e
	e.deliver(l.run, func() { fn(e) })
}

func (l *loader) fail(ctx context.Context, kind playback.ErrorKind, err error) {
	if ctx.Err() != nil {
		return
	}
	l.log.Debug("loader stopped", slog.String("url", l.source), slog.String("kind", kind.String()), slog.String("error", err.Error()))
	l.post(func(e *Engine) { e.report(kind, true, err) })
}

func (l *loader) loop(ctx context.Context) {
	var media *m3u8.MediaPlaylist

	if len(l.levels) == 0 {
		body, err := fetch(ctx, l.hc, l.source, maxPlaylistBytes)
		if err != nil {
			l.fail(ctx, playback.ErrorNetwork, fmt.Errorf("load manifest: %w", err))
			return
		}
		m, err := parseManifest(body, l.source)
		if err != nil {
			l.fail(ctx, playback.ErrorOther, err)
			return
		}
		l.levels = m.levels
		l.level = 0
		media = m.media
		levels := m.levels
		l.post(func(e *Engine) { e.manifestParsed(levels) })
	}
	if l.level < 0 || l.level >= len(l.levels) {
		l.level = 0
	}

	failures := 0
	for ctx.Err() == nil {
		if w := int(l.want.Load()); w != l.level && w >= 0 && w < len(l.levels) {
			l.log.Debug("switching level", slog.Int("from", l.level), slog.Int("to", w))
			l.level = w
			media = nil
			l.post(func(e *Engine) { e.current = w })
		}
		lvl := l.levels[l.level]

		if media == nil {
			body, err := fetch(ctx, l.hc, lvl.URI, maxPlaylistBytes)
			if err != nil {
				l.fail(ctx, playback.ErrorNetwork, fmt.Errorf("load level %d playlist: %w", l.level, err))
				return
			}
			if media, err = parseMedia(body); err != nil {
				l.fail(ctx, playback.ErrorOther, err)
				return
			}
		}
		refs, err := segments(media, lvl.URI)
		if err != nil {
			l.fail(ctx, playback.ErrorOther, err)
			return
		}
		wait := l.pollInterval(media)
		ended := media.Closed
		media = nil

		start := 0
		if l.lastSeq < 0 && len(refs) > l.opts.LiveEdgeSegments {
			start = len(refs) - l.opts.LiveEdgeSegments
		}
		for _, ref := range refs[start:] {
			if ref.seq <= l.lastSeq {
				continue
			}
			body, err := fetch(ctx, l.hc, ref.uri, maxSegmentBytes)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, ErrTooLarge) {
					l.fail(ctx, playback.ErrorMedia, fmt.Errorf("segment %d: %w", ref.seq, err))
					return
				}
				failures++
				if failures > l.opts.SegmentRetries {
					l.fail(ctx, playback.ErrorNetwork, fmt.Errorf("segment %d: %w", ref.seq, err))
					return
				}
				l.post(func(e *Engine) { e.report(playback.ErrorNetwork, false, err) })
				break
			}
			failures = 0
			if err := checkTransportStream(ref.uri, body); err != nil {
				l.fail(ctx, playback.ErrorMedia, fmt.Errorf("segment %d: %w", ref.seq, err))
				return
			}

			l.lastSeq = ref.seq
			level, seq, dur := l.level, ref.seq, ref.duration
			l.post(func(e *Engine) { e.appended(level, seq, dur) })

			if int(l.want.Load()) != l.level {
				break
			}
		}

		if int(l.want.Load()) != l.level && failures == 0 {
			continue
		}
		if ended && (len(refs) == 0 || l.lastSeq >= refs[len(refs)-1].seq) {
			l.log.Debug("stream ended", slog.String("url", lvl.URI))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (l *loader) pollInterval(pl *m3u8.MediaPlaylist) time.Duration {
	d := time.Duration(pl.TargetDuration * float64(time.Second))
	if d <= 0 {
		d = time.Second
	}
	if d < l.opts.MinPollInterval {
		d = l.opts.MinPollInterval
	}
	return d
}
