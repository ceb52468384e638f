package media

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/ggtrain/internal/chapter"
)

func TestSimPlayer(t *testing.T) {
	p := NewSimPlayer(10 * time.Second)
	p.Seek(2)
	p.Tick(time.Second)
	assert.Equal(t, 2.0, p.CurrentTime(), "paused player does not move")

	p.Play()
	p.SetRate(1.5)
	p.Tick(2 * time.Second)
	assert.InDelta(t, 5.0, p.CurrentTime(), 1e-9)

	p.Tick(time.Minute)
	assert.Equal(t, 10.0, p.CurrentTime())
	assert.True(t, p.Paused(), "end of track pauses")

	p.Seek(-3)
	assert.Equal(t, 0.0, p.CurrentTime())
	p.SetRate(0)
	assert.Equal(t, 1.0, p.Rate())
}

func TestSimPlayer_Unbounded(t *testing.T) {
	p := NewSimPlayer(0)
	p.Play()
	p.Tick(90 * time.Second)
	assert.Equal(t, 90.0, p.CurrentTime())
	assert.False(t, p.Paused())
}

func TestDeck_LoopCrossfade(t *testing.T) {
	d := NewDeck(chapter.MediaLoop, []string{"clip.mp4"}, []time.Duration{4 * time.Second}, 500*time.Millisecond)
	d.Play()

	d.Tick(3400 * time.Millisecond)
	st := d.State()
	assert.False(t, st.Fading)
	assert.Equal(t, 0, st.Front)
	assert.Equal(t, [2]float64{1, 0}, st.Opacity)

	// 3.5s in: the back deck starts from zero and fades in.
	d.Tick(350 * time.Millisecond)
	st = d.State()
	require.True(t, st.Fading)
	assert.InDelta(t, 0.5, st.Opacity[1], 1e-9)
	assert.InDelta(t, 0.5, st.Opacity[0], 1e-9)

	// Fade complete: roles swap and the old front deck is rewound.
	d.Tick(250 * time.Millisecond)
	st = d.State()
	assert.False(t, st.Fading)
	assert.Equal(t, 1, st.Front)
	assert.Equal(t, 500*time.Millisecond, st.Position)
	assert.Equal(t, [2]int{1, 0}, st.Plays)
	assert.Equal(t, "clip.mp4", st.Source)
}

func TestDeck_LoopLargeTick(t *testing.T) {
	d := NewDeck(chapter.MediaLoop, []string{"clip.mp4"}, []time.Duration{2 * time.Second}, 500*time.Millisecond)
	d.Play()
	// Each cycle after the first lasts clip - crossfade.
	d.Tick(2*time.Second + 3*1500*time.Millisecond)
	st := d.State()
	assert.Equal(t, 4, st.Plays[0]+st.Plays[1])
	assert.Equal(t, 0, st.Front)
	assert.Equal(t, 500*time.Millisecond, st.Position)
}

func TestDeck_Alternate(t *testing.T) {
	d := NewDeck(chapter.MediaAlternate, []string{"a.mp4", "b.mp4"}, []time.Duration{3 * time.Second}, 500*time.Millisecond)
	d.Play()
	assert.Equal(t, "a.mp4", d.State().Source)

	d.Tick(3 * time.Second)
	assert.Equal(t, "b.mp4", d.State().Source)

	d.Tick(4 * time.Second)
	st := d.State()
	assert.Equal(t, "a.mp4", st.Source)
	assert.Equal(t, time.Second, st.Position)
	assert.Equal(t, [2]int{1, 1}, st.Plays)
}

func TestDeck_AlternateUsesEachClipLength(t *testing.T) {
	d := NewDeck(chapter.MediaAlternate, []string{"a.mp4", "b.mp4"}, []time.Duration{time.Second, 3 * time.Second}, 0)
	d.Play()

	d.Tick(time.Second)
	assert.Equal(t, "b.mp4", d.State().Source)

	d.Tick(2 * time.Second)
	st := d.State()
	assert.Equal(t, "b.mp4", st.Source, "b plays its own full length")
	assert.Equal(t, 2*time.Second, st.Position)

	d.Tick(1500 * time.Millisecond)
	st = d.State()
	assert.Equal(t, "a.mp4", st.Source)
	assert.Equal(t, 500*time.Millisecond, st.Position)
	assert.Equal(t, [2]int{1, 1}, st.Plays)
}

func TestDeck_PausedAndStill(t *testing.T) {
	d := NewDeck(chapter.MediaAlternate, []string{"a.mp4", "b.mp4"}, []time.Duration{time.Second}, 0)
	d.Tick(5 * time.Second)
	assert.Equal(t, "a.mp4", d.State().Source)

	img := NewDeck(chapter.MediaImage, []string{"still.png"}, []time.Duration{time.Second}, 0)
	img.Play()
	assert.False(t, img.Playing())
	assert.Equal(t, "still.png", img.State().Source)

	none := NewDeck(chapter.MediaNone, nil, []time.Duration{time.Second}, 0)
	none.Play()
	none.Tick(time.Second)
	assert.Empty(t, none.State().Source)
}

func TestDeck_Rate(t *testing.T) {
	d := NewDeck(chapter.MediaAlternate, []string{"a.mp4", "b.mp4"}, []time.Duration{2 * time.Second}, 0)
	d.SetRate(2)
	d.Play()
	d.Tick(time.Second)
	assert.Equal(t, "b.mp4", d.State().Source)
}

func TestProber(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    time.Duration
		video   bool
		wantErr bool
	}{
		{
			name:  "format duration",
			out:   `{"streams":[{"codec_type":"video","width":1920,"height":1080},{"codec_type":"audio"}],"format":{"duration":"12.500000"}}`,
			want:  12500 * time.Millisecond,
			video: true,
		},
		{
			name: "stream fallback",
			out:  `{"streams":[{"codec_type":"audio","duration":"3.25"}],"format":{}}`,
			want: 3250 * time.Millisecond,
		},
		{name: "no duration", out: `{"streams":[],"format":{}}`, wantErr: true},
		{name: "garbage", out: `ffprobe: not json`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProberWith(func(string) (string, error) { return tt.out, nil })
			info, err := p.Probe("x.mp4")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.Duration)
			assert.Equal(t, tt.video, info.HasVideo)
		})
	}

	failing := NewProberWith(func(string) (string, error) { return "", errors.New("exit status 1") })
	_, err := failing.Duration("missing.mp3")
	assert.ErrorContains(t, err, "missing.mp3")
}
