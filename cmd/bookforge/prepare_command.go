package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookforge/internal/catalog"
	"bookforge/internal/logging"
	"bookforge/internal/preparer"
)

func newPrepareCommand(ctx *commandContext) *cobra.Command {
	var count int
	var force bool

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Prepare the next catalog entries for publication",
		Long: "Reads the book catalog and materializes upload-ready directories " +
			"with renamed asset copies and a metadata descriptor. Already " +
			"prepared books are skipped unless --force is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			separator := []rune(cfg.Paths.CatalogSeparator)[0]
			records, skipped, err := catalog.Load(cfg.Paths.CatalogFile, separator)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			for _, skip := range skipped {
				logger.Warn("skipping malformed catalog row",
					logging.Int("row", skip.Index), logging.Error(skip.Err))
			}
			if len(skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d malformed catalog row(s); see log for details.\n", len(skipped))
			}

			existing, err := preparer.ListPrepared(cfg.Paths.PreparedDir)
			if err != nil {
				return fmt.Errorf("list prepared books: %w", err)
			}
			prepared := make(map[string]struct{}, len(existing))
			for _, dir := range existing {
				prepared[dir] = struct{}{}
			}

			var pending []catalog.Record
			for _, record := range records {
				name := preparer.DirName(record.Index, record.Title)
				if _, ok := prepared[name]; ok && !force {
					continue
				}
				pending = append(pending, record)
			}
			if count > 0 && len(pending) > count {
				pending = pending[:count]
			}

			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "All catalog entries are already prepared.")
				return nil
			}

			summary, err := preparer.New(cfg, logger).PrepareBatch(cmd.Context(), pending, len(records))
			if err != nil {
				return fmt.Errorf("prepare books: %w", err)
			}

			fmt.Fprintf(out, "Prepared %d book(s):\n", len(summary.PreparedDirectories))
			for _, dir := range summary.PreparedDirectories {
				fmt.Fprintf(out, "  %s\n", dir)
			}
			if summary.MissingAssetWarnings > 0 {
				fmt.Fprintf(out, "Warnings: %d referenced asset file(s) were missing.\n", summary.MissingAssetWarnings)
			}
			fmt.Fprintf(out, "Remaining unprepared catalog entries: %d\n", summary.RemainingBooks)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Maximum number of books to prepare (0 = all pending)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-prepare books whose directories already exist")
	return cmd
}
