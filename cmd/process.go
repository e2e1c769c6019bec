package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/productphoto/internal/barcode"
	"github.com/lehigh-university-libraries/productphoto/internal/compositor"
	"github.com/lehigh-university-libraries/productphoto/internal/config"
	"github.com/lehigh-university-libraries/productphoto/internal/images"
	"github.com/lehigh-university-libraries/productphoto/internal/models"
	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
	"github.com/lehigh-university-libraries/productphoto/internal/removal"
	"github.com/lehigh-university-libraries/productphoto/internal/report"
	"github.com/lehigh-university-libraries/productphoto/internal/upload"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var errItemsFailed = errors.New("one or more photos failed")

func newProcessCmd() *cobra.Command {
	var (
		code       string
		labelImage string
		endpoint   string
		outDir     string
		reportPath string
		noRemoval  bool
	)

	cmd := &cobra.Command{
		Use:   "process [photos...]",
		Short: "Process captured photos for one product",
		Long: `Runs captured photos through background removal and white-background
compositing, then stores them as <code>.png, <code>(1).png, ...

Results go to the upload API (--endpoint, default API_URL) or to a local
directory (--out). A failing photo never stops the others; the command exits
non-zero if any photo failed.`,
		Example: `  # Upload three photos of product 7791234
  productphoto process --code 7791234 front.jpg side.jpg back.jpg

  # Read the code from a label photo and write PNGs locally
  productphoto process --label label.jpg --out ./export *.jpg

  # Keep a parquet manifest of the run
  productphoto process --code 7791234 --report run.parquet *.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if endpoint != "" {
				cfg.APIURL = endpoint
			}

			productCode, err := resolveCode(cmd, cfg, code, labelImage)
			if err != nil {
				return err
			}

			deps := pipeline.Deps{
				Source:     images.NewFetcher(cfg.HTTPTimeout),
				Remover:    newRemover(cfg),
				Compositor: compositor.New(),
			}
			if noRemoval {
				deps.Remover = removal.Passthrough{}
			}
			if outDir != "" {
				deps.Sink = upload.DirSink{Dir: outDir}
			} else {
				deps.Sink = upload.NewClient(cfg.APIURL, cfg.HTTPTimeout)
			}

			var runReport pipeline.Report
			bar := newProgressBar(len(args), productCode)
			session := models.ProductSession{ID: uuid.NewString(), ProductCode: productCode}
			p := pipeline.New(session, deps,
				pipeline.WithProgress(func(pr pipeline.Progress) {
					_ = bar.Set(pr.Processed)
				}),
				pipeline.WithCompletion(func(r pipeline.Report) {
					runReport = r
				}),
			)

			for _, path := range args {
				if _, err := p.Enqueue(path); err != nil {
					return err
				}
			}

			outcomes, err := p.RunAll(cmd.Context())
			_ = bar.Finish()
			if err != nil {
				return err
			}

			summary := p.Status()
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				switch {
				case o.State == pipeline.Failed:
					fmt.Fprintf(out, "%-24s %s\n", o.Filename, pipeline.PhotoStatus{State: o.State, Reason: o.Error})
				case o.Degraded:
					fmt.Fprintf(out, "%-24s %s (background kept: %s)\n", o.Filename, o.State, o.DegradedReason)
				default:
					fmt.Fprintf(out, "%-24s %s -> %s\n", o.Filename, o.State, o.Image.ProcessedURI)
				}
			}
			fmt.Fprintf(out, "%d/%d completed, %d failed\n", summary.Completed, summary.Total, summary.Failed)

			if reportPath != "" {
				if err := report.Write(reportPath, runReport); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				slog.Info("Run report written", "path", reportPath)
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%w: %d of %d", errItemsFailed, summary.Failed, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&code, "code", "c", "", "Product code typed in by hand")
	cmd.Flags().StringVar(&labelImage, "label", "", "Photo of the product label to read the code from")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Upload API base URL (default API_URL)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write processed images to this directory instead of uploading")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a run report (.yaml or .parquet)")
	cmd.Flags().BoolVar(&noRemoval, "no-removal", false, "Skip background removal")
	cmd.MarkFlagsMutuallyExclusive("code", "label")
	cmd.MarkFlagsMutuallyExclusive("endpoint", "out")

	return cmd
}

func resolveCode(cmd *cobra.Command, cfg config.Config, code, labelImage string) (string, error) {
	if labelImage == "" {
		if code == "" {
			return "", errors.New("a product code is required: pass --code or --label")
		}
		return barcode.Manual(code)
	}

	image, err := os.ReadFile(labelImage)
	if err != nil {
		return "", fmt.Errorf("failed to read label image: %w", err)
	}
	reader, err := barcode.NewReader(cfg.ScanProvider, cfg.ScanModel)
	if err != nil {
		return "", err
	}
	scanned, err := reader.Read(cmd.Context(), image)
	if err != nil {
		return "", fmt.Errorf("%w; retry with another photo or pass --code", err)
	}
	slog.Info("Product code scanned", "code", scanned, "label", labelImage)
	return scanned, nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}
