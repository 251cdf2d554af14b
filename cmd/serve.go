package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/imwonpark/RAG-based-SE/controller"
)

// NewServeCmd creates the serve command.
func NewServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the REST API.

Endpoints:
  GET    /health
  POST   /api/v1/query
  POST   /api/v1/query/batch
  POST   /api/v1/search
  POST   /api/v1/index
  DELETE /api/v1/index
  DELETE /api/v1/documents
  GET    /api/v1/stats

With --watch the data directory is re-indexed as files change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("watch") {
				cfg.Server.Watch = watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if strings.ToLower(cfg.Log.Level) != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			rc := controller.NewRAGController(app.Pipeline, app.Store, app.Embedder, app.Indexer, cfg.DataDir, cfg.Retrieval.TopK)
			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           controller.NewRouter(rc),
				ReadHeaderTimeout: 10 * time.Second,
			}

			if cfg.Server.Watch {
				go func() {
					if err := app.Indexer.WatchDirectory(ctx, cfg.DataDir); err != nil {
						slog.Error("watcher stopped", "error", err)
					}
				}()
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("server starting", "addr", "http://localhost:"+cfg.Server.Port)
				serverErr <- srv.ListenAndServe()
			}()

			select {
			case err := <-serverErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				slog.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to listen on")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-index the data directory on file changes")
	return cmd
}
