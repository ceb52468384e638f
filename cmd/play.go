package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/ggtrain/internal/api"
	"github.com/abhisek/ggtrain/internal/app"
	"github.com/abhisek/ggtrain/internal/screen"
	"github.com/abhisek/ggtrain/internal/screens/login"
	"github.com/abhisek/ggtrain/internal/screens/overview"
	"github.com/abhisek/ggtrain/internal/screens/stage"
)

// initTimeout bounds the token exchange plus catalog load at startup.
const initTimeout = 2 * time.Minute

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start the training viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd)
	},
}

func init() {
	addPlayFlags(playCmd)
}

func addPlayFlags(c *cobra.Command) {
	c.Flags().String("temp-token", "", "One-time token from the training link; exchanged and then forgotten")
	c.Flags().Bool("offline", false, "Play without an account; completion is kept locally")
	c.Flags().String("chapter", "", "Start at this chapter key, e.g. 2-1")
}

// runPlay wires the progress service, stage and screens and launches the
// TUI.
func runPlay(cmd *cobra.Command) error {
	rt, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	tempToken, _ := cmd.Flags().GetString("temp-token")
	offline, _ := cmd.Flags().GetBool("offline")
	chapterKey, _ := cmd.Flags().GetString("chapter")
	if chapterKey != "" {
		if _, ok := rt.curriculum.Chapter(chapterKey); !ok {
			return fmt.Errorf("unknown chapter %q", chapterKey)
		}
	}

	base := stage.Deps{
		Config:     rt.cfg,
		Curriculum: rt.curriculum,
		Content:    rt.content,
		Resolver:   rt.resolver,
		Local:      rt.local(),
		Events:     rt.store.EventRepo(),
		Prober:     rt.prober(),
		Logger:     rt.log,
	}

	offlineStage := func() screen.Screen {
		key := chapterKey
		if key == "" {
			key = rt.curriculum.First()
		}
		rt.log.Info("starting offline", zap.String("chapter", key))
		return stage.New(base, key)
	}

	var initial screen.Screen
	if offline {
		initial = offlineStage()
	} else {
		svc := rt.service()
		ctx, cancel := context.WithTimeout(cmd.Context(), initTimeout)
		err := svc.Init(ctx, tempToken)
		cancel()
		if err != nil {
			rt.log.Error("progress service init failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, "Sign-in failed:", err)
		}

		online := base
		online.Catalog = svc
		online.Overview = func() screen.Screen { return overview.New(svc) }
		onlineStage := func() screen.Screen {
			key := chapterKey
			if key == "" || svc.SetCurrentKey(key) != nil {
				key = svc.CurrentKey()
			}
			return stage.New(online, key)
		}

		if svc.Authenticated() {
			initial = onlineStage()
		} else {
			initial = login.New(svc, onlineStage, offlineStage)
		}
	}

	return app.Run(cmd.Context(), app.Options{
		Initial:       initial,
		FrameInterval: rt.cfg.Playback.FrameInterval,
		Logger:        rt.log,
	})
}

// describeAuth is the one-line auth summary the non-interactive commands
// print.
func describeAuth(svc *api.Service) string {
	st := svc.Status()
	if !st.Authenticated {
		return st.String()
	}
	if key := svc.CurrentKey(); key != "" {
		return fmt.Sprintf("%s, resume at %s", st, key)
	}
	return st.String()
}
