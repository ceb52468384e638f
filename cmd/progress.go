package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/store"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show training progress per chapter",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		if history, _ := cmd.Flags().GetInt("history"); history > 0 {
			chapterKey, _ := cmd.Flags().GetString("chapter")
			return printHistory(cmd.Context(), out, rt.store.EventRepo(), chapterKey, history)
		}

		svc := rt.service()
		ctx, cancel := context.WithTimeout(cmd.Context(), initTimeout)
		defer cancel()
		if err := svc.Init(ctx, ""); err != nil {
			rt.log.Warn("progress service init failed", zap.Error(err))
		}

		fmt.Fprintln(out, describeAuth(svc))
		if !svc.Authenticated() {
			return printLocal(ctx, out, rt)
		}
		printRemote(out, svc)
		return nil
	},
}

func init() {
	progressCmd.Flags().Int("history", 0, "Show the last N recorded segment events instead")
	progressCmd.Flags().String("chapter", "", "Limit --history to one chapter key")
}

func printRemote(w io.Writer, svc *api.Service) {
	cur := svc.Curriculum()
	current := svc.CurrentKey()
	for _, key := range cur.Keys() {
		marker := "  "
		if key == current {
			marker = "▶ "
		}
		ch, ok := svc.Chapter(key)
		if !ok {
			fmt.Fprintf(w, "%s%-5s %-40s unavailable\n", marker, key, "")
			continue
		}
		state := "not started"
		switch p := ch.Progress; {
		case p.IsComplete():
			state = "complete"
		case p.CurrentSegment > 0:
			state = fmt.Sprintf("%d/%d segments", p.CurrentSegment, p.TotalSegments)
		}
		fmt.Fprintf(w, "%s%-5s %-40s %s\n", marker, key, ch.Title(), state)
	}

	o := svc.Overall()
	fmt.Fprintf(w, "\nOverall %d%% (%s)\n", o.Percent, o.Label())
	if svc.IsAllTrainingComplete() {
		fmt.Fprintln(w, "All training complete.")
	}
}

// printLocal lists the completion sets kept for offline play.
func printLocal(ctx context.Context, w io.Writer, rt *env) error {
	local := rt.local()
	ids, err := local.Chapters(ctx)
	if err != nil {
		return fmt.Errorf("list local progress: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No local progress recorded.")
		return nil
	}
	sort.Strings(ids)
	fmt.Fprintln(w, "Local progress:")
	for _, id := range ids {
		done, err := local.Load(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-24s %d segments done\n", id, len(done))
	}
	return nil
}

func printHistory(ctx context.Context, w io.Writer, repo store.EventRepo, chapterKey string, n int) error {
	events, err := repo.QuerySegments(ctx, store.QueryOpts{ChapterKey: chapterKey})
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "No segment events recorded.")
		return nil
	}
	for _, ev := range events {
		line := fmt.Sprintf("%6d  %s  %-5s %-12s %s",
			ev.Sequence, ev.Timestamp.Local().Format(time.DateTime), ev.ChapterKey, ev.Action, ev.HotspotID)
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
