package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docdots/internal/config"
	"github.com/dgallion1/docdots/internal/parser"
	"github.com/dgallion1/docdots/internal/pipeline"
)

var outlineCmd = &cobra.Command{
	Use:   "outline <input-dir> <output-dir>",
	Short: "Write a title and outline JSON file for every document in a directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runOutline,
}

var (
	outlineJobs  int
	outlineNoBar bool
)

func init() {
	outlineCmd.Flags().IntVarP(&outlineJobs, "jobs", "j", runtime.NumCPU(), "Documents processed in parallel")
	outlineCmd.Flags().BoolVar(&outlineNoBar, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(outlineCmd)
}

func runOutline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger()

	files, err := listDocuments(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No supported documents found in %s", args[0])
		return nil
	}

	var bar *progressbar.ProgressBar
	if !outlineNoBar {
		bar = getProgressBar(len(files), "Outlining")
	}
	sum, err := outlineBatch(cmd.Context(), files, args[1], batchOptions{
		jobs:   outlineJobs,
		parser: parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		log:    log,
		done: func() {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	color.Green("✓ Outlined %d of %d documents into %s", sum.succeeded, sum.total, args[1])
	if sum.failed > 0 {
		color.Red("✗ %d documents could not be read (see their JSON for the error)", sum.failed)
	}
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

type batchOptions struct {
	jobs   int
	parser parser.Options
	log    *slog.Logger
	done   func()
}

type batchSummary struct {
	total, succeeded, failed int
}

// listDocuments returns the supported files directly inside dir, sorted.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && parser.IsSupportedExtension(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// outlineBatch writes <stem>.json for each file. A document that cannot be
// read still gets a file with success=false; only I/O on the output side
// aborts the batch.
func outlineBatch(ctx context.Context, files []string, outDir string, opts batchOptions) (batchSummary, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return batchSummary{}, fmt.Errorf("create output dir: %w", err)
	}

	var succeeded atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.jobs))
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := analyzeFile(path, opts)
			if result.Success {
				succeeded.Add(1)
			}
			if err := writeResult(filepath.Join(outDir, stemOf(path)+".json"), result); err != nil {
				return err
			}
			if opts.done != nil {
				opts.done()
			}
			return nil
		})
	}
	err := g.Wait()

	n := int(succeeded.Load())
	return batchSummary{total: len(files), succeeded: n, failed: len(files) - n}, err
}

func analyzeFile(path string, opts batchOptions) *pipeline.Analysis {
	log := opts.log.With("file", path)
	fail := func(err error) *pipeline.Analysis {
		log.Error("failed to process document", "error", err)
		return pipeline.FailedAnalysis(fmt.Errorf("processing %s: %w", path, err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	a, err := pipeline.Analyze(data, filepath.Base(path), opts.parser)
	if err != nil {
		return fail(err)
	}
	for _, w := range a.Warnings {
		log.Warn("document degraded", "warning", w)
	}
	log.Debug("outlined", "title", a.Title, "entries", len(a.Outline))
	return a
}

func writeResult(path string, a *pipeline.Analysis) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
