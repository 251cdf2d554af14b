package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imwonpark/RAG-based-SE/models"
)

// NewQueryCmd creates the query command.
func NewQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		topK      int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Retrieve the chunks closest to the question and compose an answer.

Examples:
  ragse query "How does Redis caching work?"
  ragse query --top-k 3 --threshold 0.5 "What is Go used for?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(topK, "top-k"); err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = opts.cfg.Retrieval.SimilarityThreshold
			}

			app, err := NewApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Pipeline.Query(cmd.Context(), args[0], topK, threshold)
			if err != nil {
				return fmt.Errorf("querying: %w", err)
			}

			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of chunks to retrieve")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.7, "Similarity threshold for additional sources")
	return cmd
}

// NewBatchCmd creates the batch command.
func NewBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		topK int
		file string
	)

	cmd := &cobra.Command{
		Use:   "batch [question...]",
		Short: "Answer several questions and report timings",
		Long: `Answer every question given as an argument or, with --file, every
non-empty line of the file ("-" reads stdin). Results keep the input order
and are followed by a timing summary.

Examples:
  ragse batch "What is Redis?" "What is Go?"
  ragse batch --file questions.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(topK, "top-k"); err != nil {
				return err
			}
			queries := args
			if file != "" {
				fromFile, err := readQueries(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				queries = append(queries, fromFile...)
			}
			if len(queries) == 0 {
				return fmt.Errorf("no questions given")
			}

			app, err := NewApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			results, err := app.Pipeline.BatchQuery(cmd.Context(), queries, topK)
			if err != nil {
				return fmt.Errorf("batch querying: %w", err)
			}
			summary := app.Pipeline.Performance(results)

			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), models.BatchQueryResponse{Results: results, Performance: summary})
			}
			out := cmd.OutOrStdout()
			for i, result := range results {
				fmt.Fprintf(out, "=== %d/%d ===\n", i+1, len(results))
				printResult(out, result)
				fmt.Fprintln(out)
			}
			printSummary(out, summary)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of chunks to retrieve per question")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read questions from a file, one per line")
	return cmd
}

func readQueries(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var queries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			queries = append(queries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return queries, nil
}
