package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/imwonpark/RAG-based-SE/mcptools"
)

// NewMCPCmd creates the mcp command.
func NewMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools over stdio",
		Long: `Start an MCP server on stdio exposing three tools:

  ask_documents      answer a question from the indexed documents
  search_documents   return the closest chunks to a query
  index_stats        describe the vector index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			server := mcpserver.NewMCPServer("RAG documentation search", "1.0.0")
			mcptools.RegisterTools(server, mcptools.NewHandlers(app.Pipeline, app.Store, app.Embedder, opts.cfg.Retrieval.TopK))

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("MCP server starting on stdio")
				serverErr <- mcpserver.ServeStdio(server)
			}()

			select {
			case err := <-serverErr:
				return err
			case <-ctx.Done():
				slog.Info("shutdown signal received")
				return nil
			}
		},
	}
}
