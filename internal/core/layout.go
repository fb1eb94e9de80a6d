package core

// Bucket key layout shared by the pipeline, the gateway and the HTTP surface.
const (
	VoicesPrefix    = "voices/"
	OutputPrefix    = "output/"
	SubtitlesPrefix = "output/subtitles/"
)
