package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jot/internal/session"
)

func newRegisterCmd(c *cli) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireCredentials(); err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := c.backend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			mgr := session.NewManager(b.Store, b.Store, c.log)
			defer mgr.Close()

			acct, err := mgr.Register(ctx, c.username, c.password, displayName)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if err := mgr.Logout(ctx); err != nil {
				return fmt.Errorf("logout: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Account created: %s (%s)\n", acct.Username, acct.DisplayName)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name (defaults to the username)")
	return cmd
}
