package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"invoicer/internal/archive"
	"invoicer/internal/domain"
	"invoicer/internal/filenamer"
	"invoicer/internal/pdf"
	"invoicer/internal/processor"
	"invoicer/internal/report"
)

type processFlags struct {
	provider   string
	outputDir  string
	dryRun     bool
	retries    int
	workers    int
	split      bool
	zipPath    string
	reportPath string
}

func (a *app) newProcessCmd() *cobra.Command {
	f := &processFlags{}
	cmd := &cobra.Command{
		Use:   "process <file|dir|zip>",
		Short: "Extract invoice data and rename the files",
		Long: `Process a single PDF, every PDF in a directory, or the PDFs inside a zip
archive. Each invoice is renamed to YYYY-MM-DD-Supplier.pdf in place or in
the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProcess(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "provider to use: auto, openrouter, lmstudio or mock (default from config)")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "directory for renamed files (default: next to the input)")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "d", false, "show the new names without renaming")
	cmd.Flags().IntVar(&f.retries, "retries", 0, "retries per file after the first attempt (default from config)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "files processed concurrently (default from config)")
	cmd.Flags().BoolVar(&f.split, "split", false, "split multi-page PDFs into one invoice per page")
	cmd.Flags().StringVar(&f.zipPath, "zip", "", "also package the renamed files into this zip archive")
	cmd.Flags().StringVar(&f.reportPath, "report", "", "write a results report (.csv or .xlsx)")
	return cmd
}

func (a *app) runProcess(cmd *cobra.Command, arg string, f *processFlags) error {
	ctx := cmd.Context()

	var reportFormat domain.ReportFormat
	if f.reportPath != "" {
		var err error
		reportFormat, err = report.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(f.reportPath)), "."))
		if err != nil {
			return err
		}
	}

	preference := f.provider
	if preference == "" {
		preference = a.cfg.Providers.Preferred
	}
	name, prov, err := a.registry.Select(ctx, preference)
	if err != nil {
		return fmt.Errorf("provider %q: %w", preference, err)
	}

	inputs, err := collectInputs(arg)
	if err != nil {
		return err
	}
	defer inputs.Close()

	if f.split {
		if err := splitPages(ctx, pdf.NewSplitter(), inputs); err != nil {
			return err
		}
	}

	outputDir := f.outputDir
	if outputDir == "" {
		outputDir = inputs.BaseDir
	}
	if outputDir != "" {
		if err := filenamer.EnsureDir(outputDir); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	retries := f.retries
	if retries <= 0 {
		retries = a.cfg.Processing.MaxRetries
	}
	workers := f.workers
	if workers <= 0 {
		workers = a.cfg.Processing.Workers
	}

	fmt.Fprintf(a.stdout, "Processing %d file(s) with %s\n", len(inputs.Files), name)
	if f.dryRun {
		fmt.Fprintln(a.stdout, "Dry run: files will not be renamed")
	}

	bar := progressbar.NewOptions(len(inputs.Files),
		progressbar.OptionSetWriter(a.stderr),
		progressbar.OptionSetDescription("Renaming"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)

	proc := processor.New(prov)
	results := proc.ProcessConcurrent(ctx, inputs.Files, processor.Options{
		MaxRetries: retries,
		OutputDir:  outputDir,
		DryRun:     f.dryRun,
		Verbose:    a.verbose,
		Progress:   func(domain.ProcessingResult) { _ = bar.Add(1) },
	}, workers)
	_ = bar.Finish()

	a.printSummary(results, f.dryRun)

	if f.zipPath != "" && !f.dryRun {
		n, err := archive.WriteResults(f.zipPath, results)
		if err != nil {
			return fmt.Errorf("writing zip: %w", err)
		}
		fmt.Fprintf(a.stdout, "Archived %d file(s) to %s\n", n, f.zipPath)
	}
	if f.reportPath != "" {
		if err := writeReport(f.reportPath, reportFormat, name, results); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(a.stdout, "Report written to %s\n", f.reportPath)
	}
	return ctx.Err()
}

func (a *app) printSummary(results []domain.ProcessingResult, dryRun bool) {
	var failed []domain.ProcessingResult
	verb := "Renamed"
	if dryRun {
		verb = "Would rename"
	}
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
			continue
		}
		fmt.Fprintf(a.stdout, "  %s: %s -> %s\n", verb, filepath.Base(r.OriginalPath), filepath.Base(r.NewPath))
	}

	fmt.Fprintf(a.stdout, "\nDone: %d succeeded, %d failed, %d total\n",
		len(results)-len(failed), len(failed), len(results))
	if len(failed) == 0 {
		return
	}
	fmt.Fprintln(a.stdout, "Failed files:")
	for _, r := range failed {
		fmt.Fprintf(a.stdout, "  %s [%s]: %s\n", filepath.Base(r.OriginalPath),
			domain.CategoryFor(r.ErrorKind, r.Error), r.Error)
	}
}
