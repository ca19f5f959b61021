// Package hlstest serves live HLS streams, thumbnails and a camera list from
// an in-process HTTP server for engine and service tests.
package hlstest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"

	// DefaultWindowSize is the number of segments advertised per media playlist.
	DefaultWindowSize = 6

	tsPacketSize = 188
)

// Thumbnail is the body served for every camera poster.
var Thumbnail = []byte{0xff, 0xd8, 0xff, 0xe0, 'J', 'F', 'I', 'F', 0xff, 0xd9}

type camera struct {
	id         string
	name       string
	renditions []Rendition
	segments   map[string][]Segment
	next       int64
	ended      bool

	manifestStatus int
	failSegments   int
	corrupt        bool
	thumbStatus    int
}

// Origin is a fake camera backend. All methods are safe for concurrent use.
type Origin struct {
	srv *httptest.Server

	mu      sync.RWMutex
	cameras map[string]*camera
	order   []string
	hits    map[string]int
	window  int
}

// NewOrigin starts a server. Close it when done.
func NewOrigin() *Origin {
	o := &Origin{
		cameras: make(map[string]*camera),
		hits:    make(map[string]int),
		window:  DefaultWindowSize,
	}
	o.srv = httptest.NewServer(o.routes())
	return o
}

// URL is the server base URL without a trailing slash.
func (o *Origin) URL() string { return o.srv.URL }

// StreamURL is the master (or single-rendition media) playlist URL for id.
func (o *Origin) StreamURL(id string) string {
	return o.srv.URL + "/stream/" + id + "/index.m3u8"
}

// Close shuts the server down.
func (o *Origin) Close() { o.srv.Close() }

func (o *Origin) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(o.countHits)
	r.Get("/cameras", o.listCameras)
	r.Get("/thumbnail/{camera_id}", o.getThumbnail)
	r.Route("/stream/{camera_id}", func(r chi.Router) {
		r.Get("/index.m3u8", o.getIndex)
		r.Get("/{rendition}/index.m3u8", o.getMediaPlaylist)
		r.Get("/{rendition}/{segment}", o.getSegment)
	})
	return r
}

// AddCamera registers a camera. With no renditions a single rendition named
// "main" is used and the index is a media playlist, so clients see no
// bandwidth for it. Two or more renditions are served behind a master playlist.
func (o *Origin) AddCamera(id, name string, renditions ...Rendition) {
	if len(renditions) == 0 {
		renditions = []Rendition{{Name: "main", Bandwidth: 800_000}}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.cameras[id]; !ok {
		o.order = append(o.order, id)
	}
	o.cameras[id] = &camera{
		id:         id,
		name:       name,
		renditions: renditions,
		segments:   make(map[string][]Segment),
	}
}

// RemoveCamera drops a camera from the list and its stream from the server.
func (o *Origin) RemoveCamera(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cameras, id)
	for i, v := range o.order {
		if v == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Append adds n segments of duration seconds to every rendition of id.
func (o *Origin) Append(id string, n int, duration float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.cameras[id]
	if !ok {
		return
	}
	for i := 0; i < n; i++ {
		seq := c.next
		c.next++
		for _, r := range c.renditions {
			c.segments[r.Name] = append(c.segments[r.Name], Segment{
				Sequence: seq,
				Duration: duration,
				Path:     fmt.Sprintf("%d.ts", seq),
			})
		}
	}
}

// End marks the stream ended.
func (o *Origin) End(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.cameras[id]; ok {
		c.ended = true
	}
}

// SetManifestStatus makes playlist requests for id answer with code.
// Zero restores normal service.
func (o *Origin) SetManifestStatus(id string, code int) {
	o.with(id, func(c *camera) { c.manifestStatus = code })
}

// FailSegments makes the next n segment requests for id answer 503.
func (o *Origin) FailSegments(id string, n int) {
	o.with(id, func(c *camera) { c.failSegments = n })
}

// CorruptSegments makes segment bodies for id fail MPEG-TS sync checks.
func (o *Origin) CorruptSegments(id string, corrupt bool) {
	o.with(id, func(c *camera) { c.corrupt = corrupt })
}

// SetThumbnailStatus makes poster requests for id answer with code.
func (o *Origin) SetThumbnailStatus(id string, code int) {
	o.with(id, func(c *camera) { c.thumbStatus = code })
}

// Hits returns how many requests were made for path.
func (o *Origin) Hits(path string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.hits[path]
}

// HitsWithPrefix sums hits for every path starting with prefix.
func (o *Origin) HitsWithPrefix(prefix string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for p, c := range o.hits {
		if strings.HasPrefix(p, prefix) {
			n += c
		}
	}
	return n
}

func (o *Origin) with(id string, fn func(c *camera)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.cameras[id]; ok {
		fn(c)
	}
}

func (o *Origin) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.hits[r.URL.Path]++
		o.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type cameraJSON struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (o *Origin) listCameras(w http.ResponseWriter, r *http.Request) {
	o.mu.RLock()
	list := make([]cameraJSON, 0, len(o.order))
	for _, id := range o.order {
		list = append(list, cameraJSON{ID: id, Name: o.cameras[id].name})
	}
	o.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (o *Origin) getThumbnail(w http.ResponseWriter, r *http.Request) {
	o.mu.RLock()
	c, ok := o.cameras[chi.URLParam(r, "camera_id")]
	status := 0
	if ok {
		status = c.thumbStatus
	}
	o.mu.RUnlock()

	switch {
	case !ok:
		w.WriteHeader(http.StatusNotFound)
	case status != 0:
		w.WriteHeader(status)
	default:
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(Thumbnail)
	}
}

func (o *Origin) getIndex(w http.ResponseWriter, r *http.Request) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	c, ok := o.cameras[chi.URLParam(r, "camera_id")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if c.manifestStatus != 0 {
		w.WriteHeader(c.manifestStatus)
		return
	}

	var body string
	if len(c.renditions) == 1 {
		body = o.mediaPlaylistLocked(c, c.renditions[0].Name, c.renditions[0].Name+"/")
	} else {
		body = BuildMasterPlaylist(c.renditions)
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.Write([]byte(body))
}

func (o *Origin) getMediaPlaylist(w http.ResponseWriter, r *http.Request) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	c, ok := o.cameras[chi.URLParam(r, "camera_id")]
	rendition := chi.URLParam(r, "rendition")
	if !ok || !c.hasRendition(rendition) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if c.manifestStatus != 0 {
		w.WriteHeader(c.manifestStatus)
		return
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.Write([]byte(o.mediaPlaylistLocked(c, rendition, "")))
}

func (o *Origin) mediaPlaylistLocked(c *camera, rendition, prefix string) string {
	segs := append([]Segment(nil), c.segments[rendition]...)
	window := visibleWindow(segs, o.window)
	for i := range window {
		window[i].Path = prefix + window[i].Path
	}
	return BuildLivePlaylist(window, c.ended)
}

func (o *Origin) getSegment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "segment")
	seq, err := strconv.ParseInt(strings.TrimSuffix(name, ".ts"), 10, 64)
	if err != nil || !strings.HasSuffix(name, ".ts") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	o.mu.Lock()
	c, ok := o.cameras[chi.URLParam(r, "camera_id")]
	if !ok || !c.hasSegment(chi.URLParam(r, "rendition"), seq) {
		o.mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if c.failSegments > 0 {
		c.failSegments--
		o.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	corrupt := c.corrupt
	o.mu.Unlock()

	w.Header().Set("Content-Type", segmentContentType)
	w.Write(SegmentBody(seq, 4, corrupt))
}

func (c *camera) hasRendition(name string) bool {
	for _, r := range c.renditions {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (c *camera) hasSegment(rendition string, seq int64) bool {
	for _, s := range c.segments[rendition] {
		if s.Sequence == seq {
			return true
		}
	}
	return false
}

// SegmentBody returns packets MPEG-TS packets for seq. A corrupt body has a
// bad sync byte in its first packet.
func SegmentBody(seq int64, packets int, corrupt bool) []byte {
	body := make([]byte, packets*tsPacketSize)
	for i := 0; i < packets; i++ {
		p := body[i*tsPacketSize:]
		p[0] = 0x47
		p[1] = byte(seq >> 8 & 0x1f)
		p[2] = byte(seq)
	}
	if corrupt {
		body[0] = 0x00
	}
	return body
}
