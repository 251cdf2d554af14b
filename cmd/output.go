package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/imwonpark/RAG-based-SE/models"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func printResult(w io.Writer, result *models.RAGResult) {
	fmt.Fprintf(w, "Q: %s\n\n%s\n\n", result.Query, result.Answer)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIMILARITY\tTITLE\tCHUNK\tSOURCE")
	for _, s := range result.Sources {
		fmt.Fprintf(tw, "%.3f\t%s\t%d\t%s\n", s.Similarity, s.Title, s.ChunkIndex, s.Source)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nretrieval %.1f ms, generation %.1f ms, total %.1f ms\n",
		result.RetrievalTimeMs, result.GenerationTimeMs, result.TotalTimeMs)
}

func printSummary(w io.Writer, s models.PerformanceSummary) {
	fmt.Fprintf(w, "Queries:             %d\n", s.NumQueries)
	fmt.Fprintf(w, "Avg retrieval (ms):  %.1f\n", s.AvgRetrievalTimeMs)
	fmt.Fprintf(w, "Avg generation (ms): %.1f\n", s.AvgGenerationTimeMs)
	fmt.Fprintf(w, "Avg total (ms):      %.1f\n", s.AvgTotalTimeMs)
	fmt.Fprintf(w, "Min / max (ms):      %.1f / %.1f\n", s.MinTotalTimeMs, s.MaxTotalTimeMs)
}

func validatePositiveInt(value int, name string) error {
	if value <= 0 {
		return fmt.Errorf("--%s must be positive, got %d", name, value)
	}
	return nil
}
