package subtitle

import (
	"fmt"
	"math"

	"github.com/book-expert/tts-job-service/internal/core"
)

// Renderer implements core.SubtitleRenderer with the default style.
type Renderer struct {
	title string
}

// NewRenderer creates a Renderer. The title is written into the script header.
func NewRenderer(title string) *Renderer {
	return &Renderer{title: title}
}

// Build converts segments into a document: one event per segment, in input
// order, times truncated to whole milliseconds.
func (r *Renderer) Build(segments []core.TimedSegment) (*Document, error) {
	style := DefaultStyle()
	document := &Document{
		Title:  r.title,
		Styles: []Style{style},
		Events: make([]Event, 0, len(segments)),
	}

	for index, segment := range segments {
		if !isFinite(segment.Start) || !isFinite(segment.End) {
			return nil, fmt.Errorf("%w: segment %d has a non-finite time", core.ErrSubtitle, index)
		}

		document.Events = append(document.Events, Event{
			StartMS: toMillis(segment.Start),
			EndMS:   toMillis(segment.End),
			Style:   style.Name,
			Text:    EscapeText(segment.Text),
		})
	}

	return document, nil
}

// Render builds and serializes the document.
func (r *Renderer) Render(segments []core.TimedSegment) ([]byte, error) {
	document, err := r.Build(segments)
	if err != nil {
		return nil, err
	}

	data, err := document.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSubtitle, err)
	}

	return data, nil
}

// Extension returns ".ass".
func (r *Renderer) Extension() string {
	return Extension
}

func toMillis(seconds float64) int64 {
	return int64(seconds * millisPerSecond)
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
