package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ProbeFunc returns ffprobe's JSON description of a media file.
type ProbeFunc func(path string) (string, error)

// Prober reads media durations with ffprobe.
type Prober struct {
	probe ProbeFunc
}

// NewProber returns a Prober backed by the ffprobe binary on PATH.
func NewProber() *Prober {
	return &Prober{probe: func(path string) (string, error) {
		return ffmpeg.Probe(path)
	}}
}

// NewProberWith is for tests and alternative probes.
func NewProberWith(fn ProbeFunc) *Prober {
	return &Prober{probe: fn}
}

// Info is the subset of ffprobe output the viewer uses.
type Info struct {
	Duration time.Duration
	HasVideo bool
	HasAudio bool
	Width    int
	Height   int
}

// Probe describes the file at path. The container duration is preferred;
// the longest stream duration is used when the container has none.
func (p *Prober) Probe(path string) (Info, error) {
	out, err := p.probe(path)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return Info{}, fmt.Errorf("probe %s: decode: %w", path, err)
	}

	var info Info
	longest := 0.0
	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			if !info.HasVideo {
				info.Width, info.Height = s.Width, s.Height
			}
			info.HasVideo = true
		case "audio":
			info.HasAudio = true
		}
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > longest {
			longest = d
		}
	}

	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		seconds = longest
	}
	if seconds <= 0 {
		return info, fmt.Errorf("probe %s: no duration", path)
	}
	info.Duration = time.Duration(seconds * float64(time.Second))
	return info, nil
}

// Duration is Probe reduced to the length.
func (p *Prober) Duration(path string) (time.Duration, error) {
	info, err := p.Probe(path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
