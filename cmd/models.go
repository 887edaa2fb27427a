package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/samsaffron/proxychat/internal/catalog"
	"github.com/samsaffron/proxychat/internal/exitcode"
	"github.com/samsaffron/proxychat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	modelsRemote bool
	modelsJSON   bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Long: `List the models in the configured catalog, or the models the proxy serves.

Examples:
  proxychat models                      # catalog models
  proxychat models --remote             # ask the proxy (GET /v1/models)
  proxychat models --json               # output as JSON`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsRemote, "remote", false, "List models served by the proxy")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
}

func runModels(cmd *cobra.Command, args []string) error {
	rt, err := newProxyRuntime(appCfg, logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !modelsRemote {
		if modelsJSON {
			return writeIndentedJSON(out, rt.catalog.Models())
		}
		printCatalog(out, ui.NewStyles(out), rt.catalog, appCfg.Chat.Model)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ids, err := rt.client.ListModels(ctx, rt.creds.Fallback())
	if err != nil {
		return exitcode.Wrap(err)
	}
	if modelsJSON {
		return writeIndentedJSON(out, ids)
	}
	printRemoteModels(out, ui.NewStyles(out), rt.catalog, ids, rt.client.BaseURL())
	return nil
}

func printCatalog(w io.Writer, styles *ui.Styles, cat *catalog.Catalog, current string) {
	for _, m := range cat.Models() {
		detail := fmt.Sprintf("%s · %s", m.Name, m.Provider)
		fmt.Fprintln(w, styles.FormatChoice(m.ID == current, m.ID, detail))
		if m.Description != "" {
			fmt.Fprintln(w, "    "+styles.Muted.Render(ui.Truncate(m.Description, 72)))
		}
	}
}

func printRemoteModels(w io.Writer, styles *ui.Styles, cat *catalog.Catalog, ids []string, proxy string) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "No models found.")
		return
	}
	fmt.Fprintln(w, styles.Title.Render("Models served by "+proxy+":"))
	for _, id := range ids {
		detail := ""
		if m, ok := cat.Lookup(id); ok {
			detail = string(m.Provider)
		}
		fmt.Fprintln(w, styles.FormatChoice(false, id, detail))
	}
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
