package hlstest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildLivePlaylist_empty(t *testing.T) {
	out := BuildLivePlaylist(nil, false)
	assert.True(t, strings.HasPrefix(out, "#EXTM3U\n"))
	assert.Contains(t, out, "#EXT-X-VERSION:3")
	assert.Contains(t, out, "#EXT-X-TARGETDURATION:1")
	assert.Contains(t, out, "#EXT-X-MEDIA-SEQUENCE:0")
	assert.NotContains(t, out, "#EXT-X-ENDLIST")

	assert.Contains(t, BuildLivePlaylist(nil, true), "#EXT-X-ENDLIST")
}

func TestBuildLivePlaylist_with_segments(t *testing.T) {
	segs := []Segment{
		{Sequence: 38, Duration: 2.0, Path: "38.ts"},
		{Sequence: 39, Duration: 2.5, Path: "39.ts"},
	}
	out := BuildLivePlaylist(segs, false)

	assert.Contains(t, out, "#EXT-X-TARGETDURATION:3")
	assert.Contains(t, out, "#EXT-X-MEDIA-SEQUENCE:38")
	assert.Contains(t, out, "#EXTINF:2.000,\n38.ts\n")
	assert.Contains(t, out, "#EXTINF:2.500,\n39.ts\n")
	assert.Less(t, strings.Index(out, "38.ts"), strings.Index(out, "39.ts"))
}

func TestBuildMasterPlaylist(t *testing.T) {
	out := BuildMasterPlaylist([]Rendition{
		{Name: "low", Bandwidth: 400000, Width: 640, Height: 360},
		{Name: "high", Bandwidth: 2000000},
	})
	assert.Contains(t, out, "#EXT-X-STREAM-INF:BANDWIDTH=400000,RESOLUTION=640x360\nlow/index.m3u8\n")
	assert.Contains(t, out, "#EXT-X-STREAM-INF:BANDWIDTH=2000000\nhigh/index.m3u8\n")
}

func TestVisibleWindow(t *testing.T) {
	seg := func(seqs ...int64) []Segment {
		out := make([]Segment, len(seqs))
		for i, s := range seqs {
			out[i] = Segment{Sequence: s, Duration: 2}
		}
		return out
	}
	seqs := func(segs []Segment) []int64 {
		out := make([]int64, len(segs))
		for i, s := range segs {
			out[i] = s.Sequence
		}
		return out
	}

	assert.Empty(t, visibleWindow(nil, 6))
	assert.Equal(t, []int64{2, 3, 4}, seqs(visibleWindow(seg(0, 1, 2, 3, 4), 3)))
	assert.Equal(t, []int64{1, 2}, seqs(visibleWindow(seg(4, 1, 2), 3)))
	assert.Equal(t, []int64{5, 6}, seqs(visibleWindow(seg(5, 6, 8), 6)))
}
