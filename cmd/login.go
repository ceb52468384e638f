package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [temp-token]",
	Short: "Exchange a one-time training token for a stored session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, _ := cmd.Flags().GetString("temp-token")
		if len(args) == 1 {
			tok = args[0]
		}
		if tok == "" {
			return errors.New("a temp token is required, pass it as an argument or with --temp-token")
		}

		rt, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := rt.service()
		ctx, cancel := context.WithTimeout(cmd.Context(), initTimeout)
		defer cancel()
		if err := svc.Authenticate(ctx, tok); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeAuth(svc))
		fmt.Fprintf(cmd.OutOrStdout(), "%d chapters loaded\n", len(svc.Chapters()))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.service().Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("temp-token", "", "One-time token from the training link")
}
