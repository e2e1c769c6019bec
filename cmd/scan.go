package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/productphoto/internal/barcode"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var (
		provider string
		model    string
	)

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Read a product barcode from a photo",
		Long: `Sends a photo of the product label to a vision model and prints the
barcode digits. EAN-8, UPC-A, EAN-13 and ITF-14 check digits are verified.`,
		Example: `  productphoto scan label.jpg
  productphoto scan --provider ollama label.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if provider != "" {
				cfg.ScanProvider = provider
			}
			if model != "" {
				cfg.ScanModel = model
			}

			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			reader, err := barcode.NewReader(cfg.ScanProvider, cfg.ScanModel)
			if err != nil {
				return err
			}

			code, err := reader.Read(cmd.Context(), image)
			if errors.Is(err, barcode.ErrScanNotFound) {
				return fmt.Errorf("%w in %s; retry or enter the code by hand", err, args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Vision provider: gemini, openai or ollama (default SCAN_PROVIDER)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default depends on provider)")

	return cmd
}
