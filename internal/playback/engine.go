package playback

// Level is one quality rendition advertised by a manifest.
type Level struct {
	Index     int    `json:"index"`
	Bandwidth int    `json:"bandwidth"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	URI       string `json:"-"`
}

// VideoSurface is the render target a session shows once playback is confirmed.
type VideoSurface interface {
	Show()
	Hide()
	// Position is the current play position in seconds.
	Position() float64
	// BufferedEnd is the end of the buffered range containing Position, in seconds.
	BufferedEnd() float64
	// DecodedFrames is the number of frames decoded since the surface was attached.
	DecodedFrames() int
}

// Engine is an adaptive-streaming client bound to one surface. Levels are
// ordered from lowest to highest bandwidth.
type Engine interface {
	LoadSource(url string)
	Attach(surface VideoSurface)
	StartLoad()
	RecoverMediaError()
	Play() error
	Levels() []Level
	CurrentLevel() int
	SetNextLevel(level int)
	Destroy()
}

// EngineEvents are the callbacks an Engine invokes. They must be invoked on
// the session's goroutine and never after Destroy returns.
type EngineEvents struct {
	ManifestParsed func(levels []Level)
	// Playing fires once the first frames are decodable after Play.
	Playing func()
	Error   func(EngineError)
}

// EngineFactory creates engines.
type EngineFactory interface {
	// Supported reports whether this environment can play adaptive streams.
	Supported() bool
	NewEngine(events EngineEvents) Engine
}
