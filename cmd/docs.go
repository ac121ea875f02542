package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/onlinetcs/support-assistant/internal/app"
	"github.com/onlinetcs/support-assistant/internal/knowledge"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage knowledge base documents",
}

var docsAddCmd = &cobra.Command{
	Use:   "add <display-name> <source>",
	Short: "Register a document and ingest it",
	Long: `Registers a document under a unique display name and runs the ingestion
pipeline: the source (an http(s) URL or local file path) is fetched, split
into chunks, embedded and stored for retrieval.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			doc, err := a.Documents.CreateDocument(ctx, args[0], args[1])
			if err != nil {
				if errors.Is(err, knowledge.ErrDuplicateName) {
					return fmt.Errorf("a document named %q already exists; use \"docs reingest\" to refresh it", args[0])
				}
				return err
			}

			fmt.Printf("Registered %q (%s)\n", doc.DisplayName, doc.ID)

			if err := a.Pipeline.Run(ctx, doc.ID); err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}

			return printDocStatus(ctx, a, doc.ID)
		})
	},
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents and their ingestion status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			docs, err := a.Documents.ListDocuments(ctx)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("No documents registered.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATUS\tCHUNKS\tUPDATED\tID\tMESSAGE")
			for _, d := range docs {
				count, err := a.Documents.CountChunks(ctx, d.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					d.DisplayName, d.Status, count,
					d.UpdatedAt.Format("2006-01-02 15:04"),
					d.ID, d.StatusMessage)
			}
			return w.Flush()
		})
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <name-or-id>",
	Short: "Delete a document and all its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			doc, err := resolveDocument(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Documents.DeleteDocument(ctx, doc.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted %q (%s)\n", doc.DisplayName, doc.ID)
			return nil
		})
	},
}

var docsReingestAll bool

var docsReingestCmd = &cobra.Command{
	Use:   "reingest <name-or-id>",
	Short: "Re-ingest a document from its source",
	Long: `Drops the document's stored chunks and runs the ingestion pipeline
again from its original source. Use this after the source document changed.
With --all, every document is queued and re-ingested concurrently.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if docsReingestAll {
			return reingestAll()
		}
		if len(args) != 1 {
			return fmt.Errorf("expected a document name or id (or --all)")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			doc, err := resolveDocument(ctx, a, args[0])
			if err != nil {
				return err
			}
			if doc.Status.InFlight() {
				return fmt.Errorf("document %q is being processed; try again when it finishes", doc.DisplayName)
			}

			if err := a.Documents.ResetForReingest(ctx, doc.ID); err != nil {
				return err
			}
			if err := a.Pipeline.Run(ctx, doc.ID); err != nil {
				return fmt.Errorf("re-ingestion failed: %w", err)
			}

			return printDocStatus(ctx, a, doc.ID)
		})
	},
}

// reingestAll queues every idle document on the worker pool. The pool
// drains before the app shuts down, so all runs finish before exit.
func reingestAll() error {
	return withApp(func(ctx context.Context, a *app.App) error {
		docs, err := a.Documents.ListDocuments(ctx)
		if err != nil {
			return err
		}

		queued := 0
		for _, d := range docs {
			if d.Status.InFlight() {
				fmt.Printf("Skipping %q: already being processed\n", d.DisplayName)
				continue
			}
			if err := a.Documents.ResetForReingest(ctx, d.ID); err != nil {
				return fmt.Errorf("resetting %q: %w", d.DisplayName, err)
			}
			if err := a.Workers.Enqueue(d.ID); err != nil {
				return fmt.Errorf("queueing %q: %w", d.DisplayName, err)
			}
			queued++
		}

		fmt.Printf("Re-ingesting %d document(s)...\n", queued)
		return nil
	})
}

func init() {
	docsReingestCmd.Flags().BoolVar(&docsReingestAll, "all", false, "re-ingest every document")
	docsCmd.AddCommand(docsAddCmd, docsListCmd, docsDeleteCmd, docsReingestCmd)
	rootCmd.AddCommand(docsCmd)
}

// resolveDocument accepts either a document UUID or a display name.
func resolveDocument(ctx context.Context, a *app.App, arg string) (knowledge.Document, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return a.Documents.Document(ctx, id)
	}
	return a.Documents.DocumentByName(ctx, arg)
}

func printDocStatus(ctx context.Context, a *app.App, id uuid.UUID) error {
	doc, err := a.Documents.Document(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s", doc.DisplayName, doc.Status)
	if doc.Status == knowledge.StatusCompleted && doc.ProcessingTimeMS != nil {
		count, err := a.Documents.CountChunks(ctx, doc.ID)
		if err != nil {
			return err
		}
		fmt.Printf(" (%d chunks in %d ms)", count, *doc.ProcessingTimeMS)
	}
	if doc.StatusMessage != "" {
		fmt.Printf(" (%s)", doc.StatusMessage)
	}
	fmt.Println()
	return nil
}
