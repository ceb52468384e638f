// Package media models the narration track and the video decks of the
// viewer. Playback is driven by the caller's frame ticks so the session can
// run headless.
package media

import "time"

// Player is the narration track of a chapter.
type Player interface {
	Seek(seconds float64)
	Play()
	Pause()
	Paused() bool
	CurrentTime() float64
	SetRate(rate float64)
	Rate() float64
}

// Clock is a Player advanced by the caller instead of a decoder.
type Clock interface {
	Player
	Tick(dt time.Duration)
}

// SimPlayer is a Clock over a virtual audio track. Position advances by
// dt * rate while playing and stops at Duration when one is set.
type SimPlayer struct {
	position float64
	duration float64
	rate     float64
	playing  bool
}

// NewSimPlayer returns a paused player. duration <= 0 means unbounded.
func NewSimPlayer(duration time.Duration) *SimPlayer {
	return &SimPlayer{duration: duration.Seconds(), rate: 1}
}

func (p *SimPlayer) Seek(seconds float64) {
	p.position = p.clamp(seconds)
}

func (p *SimPlayer) Play() {
	p.playing = true
}

func (p *SimPlayer) Pause() {
	p.playing = false
}

func (p *SimPlayer) Paused() bool {
	return !p.playing
}

func (p *SimPlayer) CurrentTime() float64 {
	return p.position
}

func (p *SimPlayer) SetRate(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	p.rate = rate
}

func (p *SimPlayer) Rate() float64 {
	return p.rate
}

// Duration is the track length in seconds, 0 when unbounded.
func (p *SimPlayer) Duration() float64 {
	return p.duration
}

// Tick advances the track. Reaching the end pauses it.
func (p *SimPlayer) Tick(dt time.Duration) {
	if !p.playing || dt <= 0 {
		return
	}
	p.position = p.clamp(p.position + dt.Seconds()*p.rate)
	if p.duration > 0 && p.position >= p.duration {
		p.playing = false
	}
}

func (p *SimPlayer) clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if p.duration > 0 && s > p.duration {
		return p.duration
	}
	return s
}
