package wall

import (
	"context"

	"camwall/internal/camera"
	"camwall/internal/platform/clock"
	"camwall/internal/playback"
)

// imageLoader fetches posters off the loop and hands results back through post.
type imageLoader struct {
	ctx    context.Context
	client *camera.Client
	post   clock.Poster
}

func (l *imageLoader) LoadImage(url string, done func(playback.Image, error)) {
	go func() {
		data, contentType, err := l.client.FetchImage(l.ctx, url)
		l.post(func() {
			done(playback.Image{Data: data, ContentType: contentType}, err)
		})
	}()
}
