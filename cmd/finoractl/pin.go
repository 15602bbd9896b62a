package main

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newPINCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Inspect or clear a user's PIN lock",
	}
	cmd.AddCommand(newPINStatusCmd(e))
	cmd.AddCommand(newPINClearCmd(e))
	return cmd
}

func newPINStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a PIN is set and locked",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			st, err := e.pins.Status(cmd.Context(), uid)
			if err != nil {
				return err
			}

			locked := pterm.Green("no")
			if st.IsLocked {
				locked = pterm.Red(fmt.Sprintf("yes, %s left", (time.Duration(st.SecondsUntilUnlock()) * time.Second).String()))
			}
			return pterm.DefaultTable.WithData(pterm.TableData{
				{"User", uid},
				{"PIN set", fmt.Sprintf("%t", st.IsPINSet)},
				{"Locked", locked},
				{"Attempts left", fmt.Sprintf("%d", st.AttemptsLeft)},
			}).Render()
		},
	}
}

func newPINClearCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the PIN and any lockout",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.pins.ClearPIN(cmd.Context(), uid); err != nil {
				return err
			}
			pterm.Success.Printf("PIN of %s cleared\n", uid)
			return nil
		},
	}
}
