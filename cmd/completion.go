package cmd

import (
	"github.com/samsaffron/proxychat/internal/catalog"
	"github.com/samsaffron/proxychat/internal/config"
	"github.com/spf13/cobra"
)

// ModelFlagCompletion completes --model from the configured catalog.
func ModelFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completionCatalog().Completions(toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completionCatalog loads the catalog without failing; completion falls
// back to the built-in models.
func completionCatalog() *catalog.Catalog {
	cfg, err := config.Load(configPath)
	if err != nil {
		return catalog.Default()
	}
	cat, err := cfg.Catalog()
	if err != nil {
		return catalog.Default()
	}
	return cat
}
