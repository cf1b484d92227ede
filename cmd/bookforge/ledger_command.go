package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bookforge/internal/ledger"
	"bookforge/internal/logging"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "List completed books recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			led, err := ledger.Load(cfg.LedgerPath(), logging.NewNop())
			if err != nil {
				return fmt.Errorf("load completion ledger: %w", err)
			}

			out := cmd.OutOrStdout()
			entries := led.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No completed books recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for i, entry := range entries {
				rows = append(rows, []string{fmt.Sprintf("%d", i+1), entry})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Directory"}, rows, 1))
			fmt.Fprintf(out, "%d completed, last updated %s\n",
				len(entries), led.LastUpdated().Local().Format(time.RFC1123))
			return nil
		},
	}
}
