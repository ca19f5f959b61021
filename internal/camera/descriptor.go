package camera

import (
	"net/url"
	"strings"
)

// DefaultStreamTemplate is used when a camera does not carry its own stream URL.
const DefaultStreamTemplate = "/stream/{id}/index.m3u8"

// Descriptor is the immutable description of one camera as reported by the
// backend's camera list.
type Descriptor struct {
	ID                string `json:"id"`
	DisplayName       string `json:"name"`
	Model             string `json:"model,omitempty"`
	Resolution        string `json:"resolution,omitempty"`
	StreamURLTemplate string `json:"stream_url,omitempty"`
}

// StreamPath expands the stream URL template, substituting {id} with the
// path-escaped camera id.
func (d Descriptor) StreamPath() string {
	tmpl := d.StreamURLTemplate
	if tmpl == "" {
		tmpl = DefaultStreamTemplate
	}
	return strings.ReplaceAll(tmpl, "{id}", url.PathEscape(d.ID))
}

// Normalize drops descriptors without an id and keeps the first occurrence of
// each duplicated id, preserving order.
func Normalize(list []Descriptor) []Descriptor {
	seen := make(map[string]bool, len(list))
	out := make([]Descriptor, 0, len(list))
	for _, d := range list {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		if d.DisplayName == "" {
			d.DisplayName = d.ID
		}
		out = append(out, d)
	}
	return out
}
