package main

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Solar-crew/solar-detector/internal/api"
)

func scoreCommand(root *rootOptions) *cobra.Command {
	var area areaFlags

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute one site score and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			aoi, window, err := area.parse()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.service.ComputeSiteScore(cmd.Context(), aoi, window, root.cfg.Weights)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	area.register(cmd, api.DefaultRadiusM)
	return cmd
}
