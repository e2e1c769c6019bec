package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lehigh-university-libraries/productphoto/internal/upload"
	"github.com/spf13/cobra"
)

func newFilesCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and manage uploaded product images",
	}
	cmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Upload API base URL (default API_URL)")

	client := func() (*upload.Client, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		if endpoint != "" {
			cfg.APIURL = endpoint
		}
		return upload.NewClient(cfg.APIURL, cfg.HTTPTimeout), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List uploaded images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			list, err := c.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILENAME\tSIZE\tCREATED\tURL")
			for _, f := range list.Files {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", f.Filename, f.Size, f.Created.Format(time.RFC3339), f.URL)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files\n", list.Count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info <filename>",
		Short: "Show details of one uploaded image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			detail, err := c.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Filename: %s\n", detail.Filename)
			fmt.Fprintf(out, "Path:     %s\n", detail.Path)
			fmt.Fprintf(out, "URL:      %s\n", detail.URL)
			fmt.Fprintf(out, "Size:     %d\n", detail.Size)
			fmt.Fprintf(out, "Created:  %s\n", detail.Created.Format(time.RFC3339))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete an uploaded image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}
