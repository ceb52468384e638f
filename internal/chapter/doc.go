// Package chapter models the per-chapter content document: background,
// narration audio, canvas size and the ordered hotspot list.
package chapter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Default canvas size used when a document omits canvasDimensions.
const (
	DefaultCanvasWidth  = 6000
	DefaultCanvasHeight = 4000
)

// Doc is one chapter content document.
type Doc struct {
	ID               string            `json:"id,omitempty"`
	Title            string            `json:"title,omitempty"`
	BackgroundImage  string            `json:"backgroundImage,omitempty"`
	AudioFile        string            `json:"audioFile,omitempty"`
	TranscriptFile   string            `json:"transcriptFile,omitempty"`
	CanvasDimensions *Canvas           `json:"canvasDimensions,omitempty"`
	Hotspots         []Hotspot         `json:"hotspots"`
	Content          []json.RawMessage `json:"content,omitempty"`
	Segments         []json.RawMessage `json:"segments,omitempty"`
}

// Canvas is the pixel space hotspot geometry is expressed in.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Hotspot is one narrated segment bound to a clickable control.
type Hotspot struct {
	ID               string       `json:"id"`
	TCStart          string       `json:"tcStart,omitempty"`
	TCEnd            string       `json:"tcEnd,omitempty"`
	Order            string       `json:"order,omitempty"`
	Type             string       `json:"type,omitempty"`
	Dock             string       `json:"dock,omitempty"`
	Label            *string      `json:"label,omitempty"`
	Text             string       `json:"text,omitempty"`
	Content          string       `json:"content,omitempty"`
	CenterX          float64      `json:"centerX,omitempty"`
	CenterY          float64      `json:"centerY,omitempty"`
	Width            float64      `json:"width,omitempty"`
	Height           float64      `json:"height,omitempty"`
	Video            VideoSources `json:"video,omitempty"`
	ContentMedia     *MediaRef    `json:"contentMedia,omitempty"`
	RealLifeExamples []string     `json:"realLifeExamples,omitempty"`
}

// MediaRef is an image or video shown in the viewer pane.
type MediaRef struct {
	Type string `json:"type"`
	Src  string `json:"src"`
	Alt  string `json:"alt,omitempty"`
}

// VideoSources holds the hotspot's video field, which documents write
// either as a single path or as a list of paths.
type VideoSources []string

// UnmarshalJSON accepts a string or an array of strings.
func (v *VideoSources) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*v = nil
			return nil
		}
		*v = VideoSources{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("video: %w", err)
	}
	*v = list
	return nil
}

// Parse validates data against the chapter schema and decodes it.
func Parse(data []byte) (*Doc, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("decode: %w", err)}
	}
	return &doc, nil
}

// Canvas returns the document canvas, falling back to the defaults for
// missing or non-positive dimensions.
func (d *Doc) Canvas() Canvas {
	c := Canvas{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight}
	if d.CanvasDimensions != nil {
		if d.CanvasDimensions.Width > 0 {
			c.Width = d.CanvasDimensions.Width
		}
		if d.CanvasDimensions.Height > 0 {
			c.Height = d.CanvasDimensions.Height
		}
	}
	return c
}

// Order returns hotspot IDs in linear order.
func (d *Doc) Order() []string {
	ids := make([]string, len(d.Hotspots))
	for i, h := range d.Hotspots {
		ids[i] = h.ID
	}
	return ids
}

// Index returns the position of the hotspot with the given ID, or -1.
func (d *Doc) Index(id string) int {
	for i, h := range d.Hotspots {
		if h.ID == id {
			return i
		}
	}
	return -1
}
