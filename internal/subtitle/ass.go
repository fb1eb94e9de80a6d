// Package subtitle renders timed segments as Advanced SubStation Alpha (ASS)
// documents.
package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Extension is the file extension of rendered documents.
const Extension = ".ass"

const (
	defaultStyleName = "Default"
	millisPerCenti   = 10
	millisPerSecond  = 1000
	millisPerMinute  = 60 * millisPerSecond
	millisPerHour    = 60 * millisPerMinute
	assLineBreak     = `\N`
	boolTrue         = -1
	playResX         = 384
	playResY         = 288
)

const (
	styleFormat = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, " +
		"OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, " +
		"Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding"
	eventFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"
)

// Color is an RGBA colour. Alpha 0 is opaque, 255 fully transparent.
type Color struct {
	R, G, B, A uint8
}

// String renders the colour as &HAABBGGRR.
func (c Color) String() string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", c.A, c.B, c.G, c.R)
}

// Style is one entry of the [V4+ Styles] section.
type Style struct {
	Name           string
	FontName       string
	FontSize       float64
	PrimaryColor   Color
	SecondaryColor Color
	OutlineColor   Color
	BackColor      Color
	Bold           bool
	Italic         bool
	Underline      bool
	StrikeOut      bool
	ScaleX         float64
	ScaleY         float64
	Spacing        float64
	Angle          float64
	BorderStyle    int
	Outline        float64
	Shadow         float64
	Alignment      int
	MarginL        int
	MarginR        int
	MarginV        int
	Encoding       int
}

// DefaultStyle is the single style applied to every event: white 20pt Arial,
// bottom-centred, with a black outline and a translucent shadow.
func DefaultStyle() Style {
	return Style{
		Name:           defaultStyleName,
		FontName:       "Arial",
		FontSize:       20,
		PrimaryColor:   Color{R: 255, G: 255, B: 255},
		SecondaryColor: Color{R: 255},
		OutlineColor:   Color{},
		BackColor:      Color{A: 128},
		ScaleX:         100,
		ScaleY:         100,
		BorderStyle:    1,
		Outline:        2,
		Shadow:         1,
		Alignment:      2,
		MarginL:        10,
		MarginR:        10,
		MarginV:        10,
		Encoding:       1,
	}
}

// Event is one Dialogue line. Times are in milliseconds.
type Event struct {
	Layer   int
	StartMS int64
	EndMS   int64
	Style   string
	Text    string
}

// Document is a complete subtitle script.
type Document struct {
	Title  string
	Styles []Style
	Events []Event
}

// WriteTo serializes the document in ASS format.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	counter := &countingWriter{writer: w}
	buffered := bufio.NewWriter(counter)

	d.writeScriptInfo(buffered)
	d.writeStyles(buffered)
	d.writeEvents(buffered)

	flushErr := buffered.Flush()
	if flushErr != nil {
		return counter.written, fmt.Errorf("failed to write subtitle document: %w", flushErr)
	}

	return counter.written, nil
}

// Bytes serializes the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	var builder strings.Builder

	_, err := d.WriteTo(&builder)
	if err != nil {
		return nil, err
	}

	return []byte(builder.String()), nil
}

func (d *Document) writeScriptInfo(w *bufio.Writer) {
	fmt.Fprintln(w, "[Script Info]")

	if d.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", d.Title)
	}

	fmt.Fprintln(w, "ScriptType: v4.00+")
	fmt.Fprintln(w, "WrapStyle: 0")
	fmt.Fprintf(w, "PlayResX: %d\n", playResX)
	fmt.Fprintf(w, "PlayResY: %d\n", playResY)
	fmt.Fprintln(w, "ScaledBorderAndShadow: yes")
	fmt.Fprintln(w)
}

func (d *Document) writeStyles(w *bufio.Writer) {
	fmt.Fprintln(w, "[V4+ Styles]")
	fmt.Fprintln(w, styleFormat)

	for _, style := range d.Styles {
		fmt.Fprintf(w, "Style: %s,%s,%s,%s,%s,%s,%s,%d,%d,%d,%d,%s,%s,%s,%s,%d,%s,%s,%d,%d,%d,%d,%d\n",
			style.Name, style.FontName, formatNumber(style.FontSize),
			style.PrimaryColor, style.SecondaryColor, style.OutlineColor, style.BackColor,
			assBool(style.Bold), assBool(style.Italic), assBool(style.Underline), assBool(style.StrikeOut),
			formatNumber(style.ScaleX), formatNumber(style.ScaleY),
			formatNumber(style.Spacing), formatNumber(style.Angle),
			style.BorderStyle, formatNumber(style.Outline), formatNumber(style.Shadow),
			style.Alignment, style.MarginL, style.MarginR, style.MarginV, style.Encoding)
	}

	fmt.Fprintln(w)
}

func (d *Document) writeEvents(w *bufio.Writer) {
	fmt.Fprintln(w, "[Events]")
	fmt.Fprintln(w, eventFormat)

	for _, event := range d.Events {
		fmt.Fprintf(w, "Dialogue: %d,%s,%s,%s,,0,0,0,,%s\n",
			event.Layer, FormatTimestamp(event.StartMS), FormatTimestamp(event.EndMS),
			event.Style, event.Text)
	}
}

// FormatTimestamp renders milliseconds as H:MM:SS.cc, truncating to centiseconds.
// Negative values clamp to zero.
func FormatTimestamp(millis int64) string {
	if millis < 0 {
		millis = 0
	}

	hours := millis / millisPerHour
	millis %= millisPerHour
	minutes := millis / millisPerMinute
	millis %= millisPerMinute
	seconds := millis / millisPerSecond
	centis := (millis % millisPerSecond) / millisPerCenti

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, centis)
}

var textEscaper = strings.NewReplacer(
	"\r\n", assLineBreak,
	"\n", assLineBreak,
	"{", `\{`,
	"}", `\}`,
)

// EscapeText trims the text, converts line breaks to ASS hard breaks and
// escapes braces so they are not read as override blocks.
func EscapeText(text string) string {
	return textEscaper.Replace(strings.TrimSpace(text))
}

func assBool(value bool) int {
	if value {
		return boolTrue
	}

	return 0
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

type countingWriter struct {
	writer  io.Writer
	written int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.written += int64(n)

	return n, err
}
