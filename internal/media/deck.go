package media

import (
	"time"

	"github.com/abhisek/ggtrain/internal/chapter"
)

// Deck is the video area of the viewer. A looping clip plays on two decks
// that crossfade shortly before each clip ends so the loop has no seam; an
// alternating pair swaps clips whenever one ends.
type Deck struct {
	mode      chapter.MediaMode
	sources   []string
	clips     []time.Duration
	crossfade time.Duration
	rate      float64
	playing   bool

	// loop: index of the front deck; alternate: index of the current source.
	active int
	pos    [2]time.Duration
	fading bool
	faded  time.Duration
	plays  [2]int
}

// DeckState is a snapshot for rendering.
type DeckState struct {
	Mode    chapter.MediaMode
	Source  string
	Playing bool
	// Front is the deck (loop) or source (alternate) currently shown.
	Front int
	// Opacity of each deck; both are non-zero only during a crossfade.
	Opacity  [2]float64
	Position time.Duration
	Fading   bool
	Plays    [2]int
}

// NewDeck builds a deck for the given mode. clips holds the length of each
// source; a missing entry reuses the last one. crossfade is the overlap
// window of a looping clip.
func NewDeck(mode chapter.MediaMode, sources []string, clips []time.Duration, crossfade time.Duration) *Deck {
	return &Deck{
		mode:      mode,
		sources:   sources,
		clips:     clips,
		crossfade: crossfade,
		rate:      1,
	}
}

func (d *Deck) Mode() chapter.MediaMode { return d.mode }

func (d *Deck) Sources() []string { return d.sources }

func (d *Deck) Play() {
	if d.hasVideo() {
		d.playing = true
	}
}

func (d *Deck) Pause() { d.playing = false }

func (d *Deck) Playing() bool { return d.playing }

// SetRate applies the playback speed-up to the clips.
func (d *Deck) SetRate(rate float64) {
	if rate <= 0 {
		rate = 1
	}
	d.rate = rate
}

// clip returns the length of source i.
func (d *Deck) clip(i int) time.Duration {
	switch {
	case i < len(d.clips):
		return d.clips[i]
	case len(d.clips) > 0:
		return d.clips[len(d.clips)-1]
	default:
		return 0
	}
}

func (d *Deck) hasVideo() bool {
	return (d.mode == chapter.MediaLoop || d.mode == chapter.MediaAlternate) && len(d.sources) > 0
}

// Tick advances the playing clips by dt of wall time.
func (d *Deck) Tick(dt time.Duration) {
	if !d.playing || dt <= 0 || d.clip(0) <= 0 {
		return
	}
	step := time.Duration(float64(dt) * d.rate)
	switch d.mode {
	case chapter.MediaLoop:
		d.tickLoop(step)
	case chapter.MediaAlternate:
		if d.clip(1) > 0 {
			d.tickAlternate(step)
		}
	}
}

func (d *Deck) tickLoop(rem time.Duration) {
	clip := d.clip(0)
	// Too short to overlap: restart in place.
	if clip <= d.crossfade {
		d.pos[d.active] = (d.pos[d.active] + rem) % clip
		return
	}
	for rem > 0 {
		front, back := d.active, 1-d.active
		if !d.fading {
			untilFade := clip - d.crossfade - d.pos[front]
			if untilFade > 0 {
				step := min(rem, untilFade)
				d.pos[front] += step
				rem -= step
				continue
			}
			d.fading, d.faded, d.pos[back] = true, 0, 0
		}
		step := min(rem, d.crossfade-d.faded)
		d.pos[front] += step
		d.pos[back] += step
		d.faded += step
		rem -= step
		if d.faded >= d.crossfade {
			d.plays[front]++
			d.active, d.pos[front] = back, 0
			d.fading, d.faded = false, 0
		}
	}
}

func (d *Deck) tickAlternate(rem time.Duration) {
	n := min(len(d.sources), 2)
	for rem > 0 {
		left := d.clip(d.active) - d.pos[0]
		if rem < left {
			d.pos[0] += rem
			return
		}
		rem -= left
		d.plays[d.active]++
		d.active = (d.active + 1) % n
		d.pos[0] = 0
	}
}

// State reports what the viewer should show.
func (d *Deck) State() DeckState {
	st := DeckState{Mode: d.mode, Playing: d.playing, Plays: d.plays}
	switch d.mode {
	case chapter.MediaImage:
		if len(d.sources) > 0 {
			st.Source = d.sources[0]
		}
		st.Opacity[0] = 1
	case chapter.MediaLoop:
		if len(d.sources) > 0 {
			st.Source = d.sources[0]
		}
		st.Front = d.active
		st.Position = d.pos[d.active]
		st.Fading = d.fading
		st.Opacity[d.active] = 1
		if d.fading && d.crossfade > 0 {
			in := float64(d.faded) / float64(d.crossfade)
			st.Opacity[1-d.active] = in
			st.Opacity[d.active] = 1 - in
		}
	case chapter.MediaAlternate:
		if len(d.sources) > 0 {
			st.Source = d.sources[d.active]
		}
		st.Front = d.active
		st.Position = d.pos[0]
		st.Opacity[0] = 1
	}
	return st
}
