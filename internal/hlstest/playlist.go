package hlstest

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Segment is one media segment of a rendition.
type Segment struct {
	Sequence int64
	Duration float64
	Path     string
}

// Rendition describes one quality variant of a camera stream.
type Rendition struct {
	Name      string
	Bandwidth int
	Width     int
	Height    int
}

// BuildLivePlaylist renders segments (ordered by sequence ascending) as an
// HLS media playlist. If ended is true, #EXT-X-ENDLIST is appended. An empty
// slice produces a minimal valid playlist with media sequence 0.
func BuildLivePlaylist(segments []Segment, ended bool) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	if len(segments) == 0 {
		b.WriteString("#EXT-X-TARGETDURATION:1\n")
		b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
		if ended {
			b.WriteString("#EXT-X-ENDLIST\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration(segments))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", segments[0].Sequence)

	for _, seg := range segments {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", seg.Duration)
		b.WriteString(seg.Path)
		b.WriteString("\n")
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// BuildMasterPlaylist renders one variant per rendition, pointing at
// "<name>/index.m3u8" relative to the master.
func BuildMasterPlaylist(renditions []Rendition) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, r := range renditions {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", r.Bandwidth)
		if r.Width > 0 && r.Height > 0 {
			fmt.Fprintf(&b, ",RESOLUTION=%dx%d", r.Width, r.Height)
		}
		b.WriteString("\n")
		b.WriteString(r.Name + "/index.m3u8\n")
	}
	return b.String()
}

// targetDuration returns the ceiling of the longest segment duration.
func targetDuration(segments []Segment) int {
	max := 0.0
	for _, seg := range segments {
		if seg.Duration > max {
			max = seg.Duration
		}
	}
	if max <= 0 {
		return 1
	}
	return int(math.Ceil(max))
}

// visibleWindow keeps at most size trailing segments and stops at the first
// sequence gap so players never see 42 followed by 44.
func visibleWindow(segs []Segment, size int) []Segment {
	if len(segs) == 0 || size <= 0 {
		return nil
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].Sequence < segs[j].Sequence })

	start := 0
	if len(segs) > size {
		start = len(segs) - size
	}
	windowed := segs[start:]

	out := make([]Segment, 0, len(windowed))
	for i, seg := range windowed {
		if i > 0 && seg.Sequence != windowed[i-1].Sequence+1 {
			break
		}
		out = append(out, seg)
	}
	return out
}
