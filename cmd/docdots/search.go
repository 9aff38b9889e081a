package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docdots/internal/config"
	"github.com/dgallion1/docdots/internal/doctree"
	"github.com/dgallion1/docdots/internal/embed"
	"github.com/dgallion1/docdots/internal/parser"
	"github.com/dgallion1/docdots/internal/pipeline"
	"github.com/dgallion1/docdots/internal/retrieval"
	"github.com/dgallion1/docdots/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search <dir> <selected text>",
	Short: "Find the sections of a directory of documents most related to a passage",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

var (
	searchContext    string
	searchMaxResults int
)

func init() {
	searchCmd.Flags().StringVar(&searchContext, "context", "", "Text around the selection, used for semantic matching")
	searchCmd.Flags().IntVarP(&searchMaxResults, "max-results", "n", 0, "Results to return, 1 to 10 (default from config)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger()
	ctx := cmd.Context()

	embedder, err := embed.Open(ctx, cfg.Embedding, log)
	if err != nil {
		return err
	}
	defer embedder.Close()

	st := store.NewMemory()
	files, err := listDocuments(args[0])
	if err != nil {
		return err
	}
	spinner := getSpinner(fmt.Sprintf("Indexing %d documents", len(files)))
	failed, err := ingestDirectory(ctx, st, embedder, files, cfg, log)
	_ = spinner.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	if failed > 0 {
		color.Yellow("%d of %d documents could not be indexed", failed, len(files))
	}

	maxResults := cfg.DefaultMaxResults
	if searchMaxResults != 0 {
		maxResults = searchMaxResults
	}
	query := strings.Join(args[1:], " ")
	engine := retrieval.NewEngine(st, embedder, log)
	results, err := engine.Retrieve(ctx, retrieval.Query{Text: query, Context: searchContext, MaxResults: maxResults})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		color.Yellow("No related sections found")
		return nil
	}
	heading := color.New(color.FgCyan, color.Bold).SprintfFunc()
	for i, v := range retrieval.Views(results) {
		page := "-"
		if v.Page != nil {
			page = fmt.Sprint(*v.Page)
		}
		fmt.Printf("%d. %s  %s\n", i+1, heading("%s", strings.TrimSpace(v.SectionTitle)), color.HiBlackString("%.4f %s", v.Score, v.Method))
		fmt.Printf("   %s (page %s)\n", strings.TrimSpace(v.DocumentTitle), page)
		if snippet := strings.TrimSpace(v.Snippet); snippet != "" && snippet != strings.TrimSpace(v.SectionTitle) {
			fmt.Printf("   %s\n", snippet)
		}
	}
	return nil
}

// ingestDirectory runs every file through the processing worker against st.
// It returns the number of documents that ended up failed.
func ingestDirectory(ctx context.Context, st store.Store, embedder pipeline.Embedder, files []string, cfg config.Config, log *slog.Logger) (int, error) {
	w := pipeline.NewWorker(st, embedder, log, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext}, cfg.MaxConcurrentEmbed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.WorkerCount))
	for _, path := range files {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			name := filepath.Base(path)
			doc := &doctree.Document{
				ID:               uuid.NewString(),
				Filename:         name,
				OriginalFilename: name,
				FilePath:         path,
				FileSize:         int64(len(data)),
				ContentHash:      pipeline.ContentHashHex(data),
				UploadedAt:       time.Now().UTC(),
				Status:           doctree.StatusPending,
			}
			if err := st.CreateDocument(gctx, doc); err != nil {
				return err
			}
			w.Process(gctx, pipeline.NewJob(uuid.NewString(), doc.ID, name, data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	docs, err := st.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}
	failed := 0
	for _, d := range docs {
		if d.Status != doctree.StatusCompleted {
			failed++
		}
	}
	return failed, nil
}
