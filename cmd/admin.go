package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Describe the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.Store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records:     %d\n", stats.RecordCount)
			if stats.RecordCount > 0 {
				fmt.Fprintf(out, "Collection:  %s\n", stats.CollectionName)
				fmt.Fprintf(out, "Location:    %s\n", stats.PersistLocation)
				fmt.Fprintf(out, "Sample:      %v\n", stats.SampleMetadata)
			}
			return nil
		},
	}
}

// NewClearCmd creates the clear command.
func NewClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every record in the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clearing collection: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared collection %s\n", app.Index.Name())
			return nil
		},
	}
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd(opts *rootOptions) *cobra.Command {
	var source, title string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the records of one source file or title",
		Long: `Delete every record whose metadata matches all given flags.

Examples:
  ragse delete --source data/raw/redis.md
  ragse delete --title "Redis Caching"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := map[string]any{}
			if source != "" {
				filter["source"] = source
			}
			if title != "" {
				filter["title"] = title
			}
			if len(filter) == 0 {
				return fmt.Errorf("at least one of --source or --title is required")
			}

			app, err := NewApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			deleted, err := app.Store.DeleteByFilter(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("deleting records: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source file path")
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	return cmd
}
