package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoicer/internal/provider"
	"invoicer/internal/provider/builtin"
)

func (a *app) newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List extraction providers and whether they are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fmt.Fprintln(a.stdout, "Providers:")
			for _, name := range a.registry.Names() {
				status := "unavailable"
				if a.registry.IsAvailable(ctx, name) {
					status = "available"
				}
				kind := provider.Kind(name)
				display := name
				model := builtin.ProviderConfig(kind, &a.cfg.Providers, "").Model
				if preset, ok := provider.PresetFor(kind); ok {
					display = preset.DisplayName
					if model == "" {
						model = preset.Model
					}
				}
				fmt.Fprintf(a.stdout, "  %-12s %-24s %-12s %s\n", name, display, status, model)
			}
			fmt.Fprintf(a.stdout, "Preferred: %s\n", a.cfg.Providers.Preferred)
			return nil
		},
	}
}
