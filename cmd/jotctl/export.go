package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/export"
	"github.com/MrSnakeDoc/jot/internal/notes"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a note to Markdown or PDF",
		Long: `Export writes <title>.md or <title>.pdf to the current directory,
or to --output. Use --output - to write to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "md" && format != "pdf" {
				return fmt.Errorf("unknown format %q (md or pdf)", format)
			}
			id := args[0]

			return c.withSession(cmd.Context(), func(repo *notes.Repository) error {
				n, ok := repo.Get(id)
				if !ok {
					return fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
				}

				var data []byte
				if format == "md" {
					data = []byte(c.exporter().ToMarkdown(n) + "\n")
				} else {
					pdf, err := c.exporter().ToPDF(cmd.Context(), n)
					if err != nil {
						return fmt.Errorf("export pdf: %w", err)
					}
					data = pdf
				}

				if output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				path := output
				if path == "" {
					path = export.FileName(n.Title, format)
				} else if info, err := os.Stat(path); err == nil && info.IsDir() {
					path = filepath.Join(path, export.FileName(n.Title, format))
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "Export format: md or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or directory (- for stdout)")
	return cmd
}
