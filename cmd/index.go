package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewIndexCmd creates the index command.
func NewIndexCmd(opts *rootOptions) *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "index [directory]",
		Short: "Index a documentation directory",
		Long: `Load every .md, .txt and .pdf file under the directory, split it into
chunks, embed the chunks and store them in the vector index.

Without --rebuild the previous records of each loaded file are replaced.
With --rebuild the whole collection is cleared first.

Examples:
  ragse index
  ragse index ./docs --rebuild`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.cfg.DataDir
			if len(args) == 1 {
				dir = args[0]
			}

			app, err := NewApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Indexer.IndexDirectory(cmd.Context(), dir, rebuild)
			if err != nil {
				return fmt.Errorf("indexing %s: %w", dir, err)
			}

			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d documents into %d chunks (%d records) in %.0f ms\n",
				report.Documents, report.Chunks, report.Records, report.DurationMs)
			for _, skip := range report.Skipped {
				fmt.Fprintf(out, "  skipped %s: %s\n", skip.Path, skip.Reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Clear the collection before indexing")
	return cmd
}
