package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/resolver"
)

var resolveFlags struct {
	commonName string
	family     string
	provider   string
	force      bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <scientific name>",
	Short: "Resolve care details for one species and print them as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := parseProvider(resolveFlags.provider)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.resolver.Resolve(cmd.Context(), resolver.Request{
			ScientificName: args[0],
			CommonName:     resolveFlags.commonName,
			Family:         resolveFlags.family,
			Provider:       src,
			ForceRefresh:   resolveFlags.force,
		})
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("resolve %q: %s", args[0], result.Message)
		}
		return nil
	},
}

// parseProvider accepts an empty value, which leaves the choice to the
// configured default.
func parseProvider(s string) (care.Source, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return care.ParseSource(s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFlags.commonName, "common-name", "", "common name used in the prompt")
	resolveCmd.Flags().StringVar(&resolveFlags.family, "family", "", "botanical family used in the prompt")
	resolveCmd.Flags().StringVar(&resolveFlags.provider, "provider", "", "provider tried first (generative or structured)")
	resolveCmd.Flags().BoolVar(&resolveFlags.force, "force", false, "bypass the cache and stored details")
	rootCmd.AddCommand(resolveCmd)
}
