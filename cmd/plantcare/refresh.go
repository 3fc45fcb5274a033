package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/plantcare/pkg/care"
)

var refreshFlags struct {
	provider string
	stale    bool
}

var refreshCmd = &cobra.Command{
	Use:   "refresh [scientific name...]",
	Short: "Force a refresh of the named species, or of every record needing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !refreshFlags.stale {
			return errors.New("name at least one species or pass --stale")
		}
		src, err := parseProvider(refreshFlags.provider)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if refreshFlags.stale {
			a.dispatcher.Start(ctx)
			n, err := a.sweeper(cfg).Sweep(ctx)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			a.dispatcher.Close()
			fmt.Fprintf(out, "refreshed %d records\n", n)
		}

		var failed int
		for _, name := range args {
			rec, err := a.store.FindOrCreate(ctx, name, care.Identity{})
			if err != nil {
				return err
			}
			rec, err = a.facade.ForceRefresh(ctx, rec, src)
			if err != nil {
				return err
			}
			if rec.IsUncached() {
				failed++
				fmt.Fprintf(out, "%s: no care details available\n", rec.ScientificName)
				continue
			}
			fmt.Fprintf(out, "%s: %s at %s\n", rec.ScientificName, rec.Source(), rec.CareCachedAt.Format(time.RFC3339))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d species could not be refreshed", failed, len(args))
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshFlags.provider, "provider", "", "provider tried first (generative or structured)")
	refreshCmd.Flags().BoolVar(&refreshFlags.stale, "stale", false, "refresh one batch of uncached and stale records")
	rootCmd.AddCommand(refreshCmd)
}
