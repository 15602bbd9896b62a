package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"finora/internal/exchange"
)

type exportFlags struct {
	Out string
}

func newExportCmd(e *env) *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the user's document as JSON",
		Long: `Write the user's finance document in the exchange format.

Use --out - to print to stdout. Without --out a dated file is created in the
current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			data, err := e.ledger.Data(cmd.Context(), uid)
			if err != nil {
				return err
			}

			if flags.Out == "-" {
				return exchange.Encode(cmd.OutOrStdout(), data)
			}
			path := flags.Out
			if path == "" {
				path = exchange.Filename(time.Now().In(e.cfg.Location()))
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := exchange.Encode(f, data); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export file: %w", err)
			}
			pterm.Success.Printf("Exported %d transactions to %s\n", len(data.Transactions), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Out, "out", "o", "", "output file, - for stdout")
	return cmd
}

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the user's document with an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				r = f
			}
			data, err := exchange.Decode(r)
			if err != nil {
				return err
			}
			if err := e.ledger.Import(cmd.Context(), uid, data); err != nil {
				return err
			}
			pterm.Success.Printf("Imported %d transactions, %d accounts, %d categories\n",
				len(data.Transactions), len(data.Accounts), len(data.Categories))
			return nil
		},
	}
}

type resetFlags struct {
	Wipe bool
	Yes  bool
}

func newResetCmd(e *env) *cobra.Command {
	flags := &resetFlags{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the user's local data",
		Long: `Clear the user's local document. The remote backup is kept.

With --wipe the PIN record is removed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			if !flags.Yes && !confirm(cmd, fmt.Sprintf("Clear all local data of %s?", uid)) {
				return errors.New("aborted")
			}

			if flags.Wipe {
				err = e.ledger.Wipe(cmd.Context(), uid)
			} else {
				err = e.ledger.Reset(cmd.Context(), uid)
			}
			if err != nil {
				return err
			}
			pterm.Success.Printf("Local data of %s cleared\n", uid)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.Wipe, "wipe", false, "also remove the PIN")
	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newBackupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Push the user's local data to the remote backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			spinner, _ := pterm.DefaultSpinner.Start("Backing up " + uid)
			if err := e.backups.Backup(cmd.Context(), uid); err != nil {
				spinner.Fail(err.Error())
				return err
			}
			spinner.Success("Backup completed")
			return nil
		},
	}
}

func newRestoreCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace the user's local data with the remote backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			data, found, err := e.backups.Restore(cmd.Context(), uid)
			if err != nil {
				return err
			}
			if !found {
				pterm.Warning.Printf("No remote backup found for %s\n", uid)
				return nil
			}
			pterm.Success.Printf("Restored %d transactions\n", len(data.Transactions))
			return nil
		},
	}
}

func newSyncCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Show when the user's data was last backed up",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := e.userID(cmd.Context())
			if err != nil {
				return err
			}
			st, err := e.backups.SyncStatus(cmd.Context(), uid)
			if err != nil {
				return err
			}

			loc := e.cfg.Location()
			remote, state := pterm.Yellow("disabled"), "-"
			if st.RemoteEnabled {
				remote, state = pterm.Green("enabled"), pterm.Green("up to date")
				if st.NeedsSync {
					state = pterm.Yellow("back up now")
				}
			}
			last := "never"
			if st.LastSync != nil {
				last = fmt.Sprintf("%s (%s)", st.LastSync.In(loc).Format("2006-01-02 15:04"), st.Since(time.Now()))
			}
			saved := "-"
			if st.LastSaved != nil {
				saved = st.LastSaved.In(loc).Format("2006-01-02 15:04")
			}

			table, err := pterm.DefaultTable.WithData(pterm.TableData{
				{"User", uid},
				{"Remote backup", remote},
				{"Last sync", last},
				{"Last local save", saved},
				{"State", state},
			}).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
