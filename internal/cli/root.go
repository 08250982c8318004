// Package cli implements the invoice-renamer command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"invoicer/internal/config"
	"invoicer/internal/logger"
	"invoicer/internal/pdf"
	"invoicer/internal/provider"
	"invoicer/internal/provider/builtin"
)

type app struct {
	stdout  io.Writer
	stderr  io.Writer
	verbose bool

	cfg      *config.Config
	registry *provider.Registry
}

// NewRootCmd builds the command tree writing to the given streams.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "invoice-renamer",
		Short: "Rename invoice PDFs after their date and supplier",
		Long: `invoice-renamer extracts the invoice date and supplier from PDF invoices with
a vision language model and renames each file to YYYY-MM-DD-Supplier.pdf.
Thai Buddhist Era dates are converted to the Common Era.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(a.newProcessCmd(), a.newProvidersCmd())
	return root
}

// setup loads configuration and registers the providers.
func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logger.Init(logger.Options{Level: level, Format: "console", Writer: a.stderr})

	a.registry = provider.NewRegistry()
	if err := builtin.Setup(a.registry, &cfg.Providers, pdf.NewRasterizer(pdf.DefaultDPI)); err != nil {
		return fmt.Errorf("initialize providers: %w", err)
	}
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
