package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/ggtrain/internal/devserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local training API and content server",
	Long: `serve runs a development stand-in for the training platform: the token
exchange, the progress endpoints and the content root as static files. It
prints a one-time token to start the viewer with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			rt.cfg.Server.Addr = addr
		}
		learner, _ := cmd.Flags().GetString("learner")

		contentRoot := ""
		if base := rt.resolver.Base(); base != nil && base.Scheme == "file" {
			contentRoot = filepath.FromSlash(base.Path)
		}

		srv, err := devserver.New(devserver.Options{
			Config:      rt.cfg.Server,
			ContentRoot: contentRoot,
			Learners:    rt.store.LearnerRepo(),
			Logger:      rt.log.Named("devserver"),
			Registry:    rt.registry,
		})
		if err != nil {
			return err
		}

		tok, expires := srv.MintTempToken(learner)
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", rt.cfg.Server.Addr)
		fmt.Fprintf(cmd.OutOrStdout(), "Temp token (valid until %s):\n  %s\n", expires.Local().Format("15:04:05"), tok)
		fmt.Fprintf(cmd.OutOrStdout(), "Start the viewer with:\n  ggtrain play --api http://%s --temp-token %s\n", displayAddr(rt.cfg.Server.Addr), tok)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().String("learner", devserver.DefaultLearner, "Learner the printed temp token belongs to")
}

// displayAddr turns ":8787" into "localhost:8787".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
