package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/ggtrain/internal/chapter"
	"github.com/abhisek/ggtrain/internal/curriculum"
	"github.com/abhisek/ggtrain/internal/media"
	"github.com/abhisek/ggtrain/internal/transcript"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check every chapter document under the content root",
	Long: `validate loads each chapter the curriculum names, checks it against the
chapter schema and reports segments that no hotspot maps to, hotspots whose
playback window is empty and transcripts that fail to parse. dir, when
given, replaces the configured content root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if err := cmd.Flags().Set("content", args[0]); err != nil {
				return err
			}
		}
		rt, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		var prober *media.Prober
		if probe, _ := cmd.Flags().GetBool("probe"); probe {
			if prober = rt.prober(); prober == nil {
				return errors.New("--probe needs ffprobe on PATH")
			}
		}

		v := validator{env: rt, prober: prober, out: cmd.OutOrStdout()}
		failed := 0
		for _, key := range rt.curriculum.Keys() {
			if !v.chapter(cmd.Context(), key) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d chapters have problems", failed, len(rt.curriculum.Keys()))
		}
		fmt.Fprintln(v.out, "All chapters valid.")
		return nil
	},
}

func init() {
	validateCmd.Flags().Bool("probe", false, "Also compare narration audio length with the last hotspot window")
}

type validator struct {
	env    *env
	prober *media.Prober
	out    io.Writer
}

// chapter checks one chapter and prints its problems. It reports whether
// the chapter is clean.
func (v validator) chapter(ctx context.Context, key string) bool {
	fps := v.env.cfg.Playback.FPS
	var problems []string

	data, err := v.env.content.Fetch(ctx, key)
	if err != nil {
		fmt.Fprintf(v.out, "✗ %s: %v\n", key, err)
		return false
	}
	doc, err := chapter.Parse(data)
	if err != nil {
		fmt.Fprintf(v.out, "✗ %s: %v\n", key, err)
		return false
	}

	names := v.env.curriculum.SegmentNames(key)
	if len(names) > 0 {
		for i, id := range curriculum.Match(names, doc.Candidates()) {
			if id == "" {
				problems = append(problems, fmt.Sprintf("segment %q has no hotspot", names[i]))
			}
		}
	}

	var last float64
	for i, h := range doc.Hotspots {
		start, end := doc.Window(i, fps)
		if end <= start {
			problems = append(problems, fmt.Sprintf("hotspot %s: empty window %s-%s", h.ID, h.TCStart, h.TCEnd))
		}
		if end > last {
			last = end
		}
	}

	if doc.TranscriptFile != "" {
		text, err := v.env.content.FetchPath(ctx, doc.TranscriptFile)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("transcript: %v", err))
		case len(transcript.Parse(string(text), fps)) == 0:
			problems = append(problems, "transcript: no captions")
		}
	}

	if v.prober != nil && doc.AudioFile != "" {
		if p, ok := v.env.resolver.Local(doc.AudioFile); ok {
			d, err := v.prober.Duration(p)
			switch {
			case err != nil:
				problems = append(problems, fmt.Sprintf("audio: %v", err))
			case d.Seconds()+0.5 < last:
				problems = append(problems, fmt.Sprintf("audio is %s but hotspots run to %s",
					transcript.FormatClock(d.Seconds()), transcript.FormatClock(last)))
			}
		}
	}

	if len(problems) == 0 {
		fmt.Fprintf(v.out, "✓ %s: %d hotspots\n", key, len(doc.Hotspots))
		return true
	}
	fmt.Fprintf(v.out, "✗ %s:\n    %s\n", key, strings.Join(problems, "\n    "))
	return false
}
