package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget locally recorded progress",
	Long: `reset clears the offline completion sets. Progress stored on the training
platform is not touched. With --events the segment event log goes too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.local().Clear(cmd.Context())
		if err != nil {
			return fmt.Errorf("clear local progress: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared local progress for %d chapters.\n", n)

		if events, _ := cmd.Flags().GetBool("events"); events {
			if err := rt.store.EventRepo().Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear events: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared segment event log.")
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("events", false, "Also delete the segment event log")
}
