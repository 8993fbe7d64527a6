package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/c360studio/evorao/graph"
)

func mergeCmd(global *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "merge <input>...",
		Short: "Merge graph documents into one",
		Long: `Concatenate the @graph lists of several JSON-LD documents in argument order.

Inputs may be glob patterns such as 'pages/eva_p*.jsonld'; matches are taken
in sorted order. The first @context found is kept. Records sharing an @id
keep their first occurrence.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, _, err := setup(cmd, global)
			if err != nil {
				return err
			}

			paths, err := graph.ExpandInputs(args, logger)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no input files match %v", args)
			}

			doc, stats, err := graph.MergeFiles(paths)
			if err != nil {
				return err
			}
			if err := graph.WriteFile(output, doc); err != nil {
				return err
			}

			logger.Info("Merged graph documents",
				slog.Int("documents", stats.Documents),
				slog.Int("records", stats.Records),
				slog.Int("duplicates", stats.Duplicates),
				slog.String("output", output))
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d records from %d documents -> %s\n",
				stats.Records, stats.Documents, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JSON-LD file")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
