package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"camwall/internal/playback"

	"github.com/grafov/m3u8"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	maxPlaylistBytes = 1 << 20
	maxSegmentBytes  = 32 << 20
	tsPacketSize     = 188
	tsSyncByte       = 0x47
)

var (
	// ErrBadStatus is wrapped for non-2xx origin responses.
	ErrBadStatus = errors.New("unexpected origin status")
	// ErrBadSegment means a segment body is not valid MPEG-TS.
	ErrBadSegment = errors.New("invalid transport stream")
	// ErrTooLarge means a response body exceeded its size limit.
	ErrTooLarge = errors.New("response body too large")
)

func newHTTPClient(opts Options) *retryablehttp.Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = opts.RetryMax
	hc.RetryWaitMin = opts.RetryWaitMin
	hc.RetryWaitMax = opts.RetryWaitMax
	hc.HTTPClient.Timeout = opts.Timeout
	hc.Logger = nil
	return hc
}

func fetch(ctx context.Context, hc *retryablehttp.Client, rawURL string, limit int64) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GET %s: %w: %d", rawURL, ErrBadStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("read %s: %w: over %d bytes", rawURL, ErrTooLarge, limit)
	}
	return body, nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// manifest is a decoded top-level playlist: either a master playlist's
// variants or a single media playlist standing in for one level.
type manifest struct {
	levels []playback.Level
	media  *m3u8.MediaPlaylist
}

func parseManifest(body []byte, sourceURL string) (*manifest, error) {
	pl, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	switch kind {
	case m3u8.MEDIA:
		return &manifest{
			levels: []playback.Level{{Index: 0, URI: sourceURL}},
			media:  pl.(*m3u8.MediaPlaylist),
		}, nil
	case m3u8.MASTER:
		master := pl.(*m3u8.MasterPlaylist)
		levels := make([]playback.Level, 0, len(master.Variants))
		for _, v := range master.Variants {
			if v == nil || v.Iframe {
				continue
			}
			uri, err := resolve(sourceURL, v.URI)
			if err != nil {
				return nil, fmt.Errorf("variant %q: %w", v.URI, err)
			}
			w, h := parseResolution(v.Resolution)
			levels = append(levels, playback.Level{Bandwidth: int(v.Bandwidth), Width: w, Height: h, URI: uri})
		}
		if len(levels) == 0 {
			return nil, errors.New("master playlist has no variants")
		}
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Bandwidth < levels[j].Bandwidth })
		for i := range levels {
			levels[i].Index = i
		}
		return &manifest{levels: levels}, nil
	}
	return nil, fmt.Errorf("unknown playlist type %d", kind)
}

func parseMedia(body []byte) (*m3u8.MediaPlaylist, error) {
	pl, kind, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return nil, fmt.Errorf("decode media playlist: %w", err)
	}
	if kind != m3u8.MEDIA {
		return nil, errors.New("expected media playlist, got master")
	}
	return pl.(*m3u8.MediaPlaylist), nil
}

func parseResolution(s string) (int, int) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0
	}
	wi, err1 := strconv.Atoi(w)
	hi, err2 := strconv.Atoi(h)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return wi, hi
}

// segmentRef is one media segment with its absolute sequence number.
type segmentRef struct {
	seq      int64
	uri      string
	duration float64
}

func segments(pl *m3u8.MediaPlaylist, playlistURL string) ([]segmentRef, error) {
	out := make([]segmentRef, 0, pl.Count())
	for i, s := range pl.Segments {
		if s == nil {
			break
		}
		uri, err := resolve(playlistURL, s.URI)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", s.URI, err)
		}
		out = append(out, segmentRef{seq: int64(pl.SeqNo) + int64(i), uri: uri, duration: s.Duration})
	}
	return out, nil
}

// checkTransportStream verifies the sync byte of every 188-byte packet.
// Non-TS segments (fMP4, AAC) are not inspected.
func checkTransportStream(uri string, body []byte) error {
	u, err := url.Parse(uri)
	if err != nil || !strings.HasSuffix(u.Path, ".ts") {
		return nil
	}
	if len(body) < tsPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrBadSegment, len(body))
	}
	for off := 0; off+tsPacketSize <= len(body); off += tsPacketSize {
		if body[off] != tsSyncByte {
			return fmt.Errorf("%w: lost sync at offset %d", ErrBadSegment, off)
		}
	}
	return nil
}
