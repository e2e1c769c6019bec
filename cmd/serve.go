package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/productphoto/internal/barcode"
	"github.com/lehigh-university-libraries/productphoto/internal/compositor"
	"github.com/lehigh-university-libraries/productphoto/internal/config"
	"github.com/lehigh-university-libraries/productphoto/internal/handlers"
	"github.com/lehigh-university-libraries/productphoto/internal/images"
	"github.com/lehigh-university-libraries/productphoto/internal/models"
	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
	"github.com/lehigh-university-libraries/productphoto/internal/removal"
	"github.com/lehigh-university-libraries/productphoto/internal/storage"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port      string
		uploadDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the capture API and product file server",
		Long: `Starts the HTTP server used by the capture app.

It accepts product image uploads, keeps the active capture session and its
photo queue, runs the processing pipeline and serves the stored images
under /uploads/products/.`,
		Example: `  # Start server on default port 3000
  productphoto serve

  # Start server on custom port with a config file
  productphoto serve --port 8080 --config productphoto.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("upload-dir") {
				cfg.UploadDir = uploadDir
			}

			router, err := buildServer(cfg)
			if err != nil {
				return err
			}

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Product photo server available", "addr", addr, "url", "http://localhost"+addr, "upload_dir", cfg.UploadDir)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "3000", "Port to listen on")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "uploads/products", "Directory for stored product images")

	return cmd
}

func buildServer(cfg config.Config) (http.Handler, error) {
	products, err := storage.NewProductStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	remover := newRemover(cfg)
	sessions := storage.New(func(session models.ProductSession) *pipeline.Pipeline {
		return pipeline.New(session, pipeline.Deps{
			Source:     images.NewFetcher(cfg.HTTPTimeout),
			Remover:    remover,
			Compositor: compositor.New(),
			Sink:       products,
		}, pipeline.WithCompletion(func(r pipeline.Report) {
			slog.Info("Session run finished", "session_id", r.Session.ID, "product_code", r.Session.ProductCode, "progress", r.Progress.String())
		}))
	})

	opts := handlers.Options{
		Sessions:   sessions,
		Products:   products,
		CaptureDir: cfg.CaptureDir,
		PublicURL:  cfg.PublicURL,
	}
	reader, err := barcode.NewReader(cfg.ScanProvider, cfg.ScanModel)
	if err != nil {
		slog.Warn("Barcode scanning disabled", "provider", cfg.ScanProvider, "err", err)
	} else {
		opts.Scanner = reader
	}

	return handlers.New(opts).Routes(), nil
}

func newRemover(cfg config.Config) pipeline.Remover {
	client := removal.NewClient(cfg.RemoveBGAPIKey, cfg.RemoveBGURL, cfg.HTTPTimeout)
	if !client.Configured() {
		slog.Warn("REMOVE_BG_API_KEY not set, photos will be stored with their original background")
	}
	return client
}
