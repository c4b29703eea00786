package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jot/internal/domain"
	"github.com/MrSnakeDoc/jot/internal/notes"
)

func newNotesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List, create and delete notes",
	}
	cmd.AddCommand(newNotesListCmd(c), newNotesCreateCmd(c), newNotesDeleteCmd(c))
	return cmd
}

type noteJSON struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"`
}

func newNotesListCmd(c *cli) *cobra.Command {
	var (
		asJSON    bool
		filterTag string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the notes of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(repo *notes.Repository) error {
				var filtered []domain.Note
				for _, n := range repo.Notes() {
					if filterTag != "" && !slices.Contains(n.Tags, filterTag) {
						continue
					}
					filtered = append(filtered, n)
				}

				out := cmd.OutOrStdout()
				if asJSON {
					list := make([]noteJSON, 0, len(filtered))
					for _, n := range filtered {
						list = append(list, noteJSON{
							ID:        n.ID,
							Title:     n.Title,
							Body:      n.BodyMarkup,
							Tags:      n.Tags,
							CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
						})
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(list)
				}

				for _, n := range filtered {
					line := n.ID + "\t" + n.Title
					if len(n.Tags) > 0 {
						line += "\t[" + strings.Join(n.Tags, ", ") + "]"
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&filterTag, "tag", "", "Filter notes by tag")
	return cmd
}

func newNotesCreateCmd(c *cli) *cobra.Command {
	var (
		title    string
		body     string
		bodyFile string
		tags     []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bodyFile != "" {
				data, err := readBody(cmd.InOrStdin(), bodyFile)
				if err != nil {
					return err
				}
				body = string(data)
			}
			return c.withSession(cmd.Context(), func(repo *notes.Repository) error {
				n, err := repo.Create(cmd.Context(), title, body, tags)
				if err != nil {
					return fmt.Errorf("create note: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Note created: %s\n", n.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Note title")
	cmd.Flags().StringVar(&body, "body", "", "Note body (HTML markup)")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the body from a file (- for stdin)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable or comma separated)")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")
	return cmd
}

func newNotesDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return c.withSession(cmd.Context(), func(repo *notes.Repository) error {
				if err := repo.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete note: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Note deleted: %s\n", id)
				return nil
			})
		},
	}
}

func readBody(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
