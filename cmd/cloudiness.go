package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

type areaFlags struct {
	lat, lon, radius float64
	start, end       string
}

func (f *areaFlags) register(cmd *cobra.Command, defaultRadius float64) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "center latitude")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "center longitude")
	cmd.Flags().Float64Var(&f.radius, "radius", defaultRadius, "radius in metres")
	cmd.Flags().StringVar(&f.start, "start", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "end date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func (f *areaFlags) parse() (model.AreaOfInterest, model.TimeWindow, error) {
	aoi := model.AreaOfInterest{Lat: f.lat, Lon: f.lon, RadiusM: f.radius}
	if err := aoi.Validate(); err != nil {
		return model.AreaOfInterest{}, model.TimeWindow{}, err
	}
	window, err := model.NewTimeWindow(f.start, f.end)
	if err != nil {
		return model.AreaOfInterest{}, model.TimeWindow{}, err
	}
	return aoi, window, nil
}

func cloudinessCommand(root *rootOptions) *cobra.Command {
	var (
		area       areaFlags
		maxRecords int
		minValid   float64
		size       int
	)

	cmd := &cobra.Command{
		Use:   "cloudiness",
		Short: "Print the cloud statistics of an area",
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

			opts := a.service.CloudOptions()
			if cmd.Flags().Changed("max-records") {
				opts.MaxRecords = maxRecords
			}
			if cmd.Flags().Changed("min-valid") {
				opts.MinValidRatio = minValid
			}
			if cmd.Flags().Changed("size") {
				opts.Width, opts.Height = size, size
			}

			stats, err := a.service.ComputeCloudiness(cmd.Context(), aoi, window, opts)
			if err != nil {
				return err
			}
			printCloudiness(os.Stdout, stats)
			return nil
		},
	}

	area.register(cmd, 1000)
	cmd.Flags().IntVar(&maxRecords, "max-records", 50, "catalog products to consider")
	cmd.Flags().Float64Var(&minValid, "min-valid", 0.8, "minimum valid-pixel ratio of a scene")
	cmd.Flags().IntVar(&size, "size", 256, "raster width and height in pixels")
	return cmd
}

func printCloudiness(w io.Writer, s *model.CloudinessStats) {
	fmt.Fprintf(w, "Scenes used:      %d\n", s.ScenesUsed)
	fmt.Fprintf(w, "Mean cloudiness:  %.1f%%\n", s.MeanCloudiness*100)
	fmt.Fprintf(w, "Clear scenes:     %.1f%% (cloud < 20%%)\n", s.ClearRatio*100)
	fmt.Fprintf(w, "Least cloudy:     %s  %.1f%%\n", s.LeastCloudy.Date, s.LeastCloudy.CloudFraction*100)
	fmt.Fprintf(w, "Most cloudy:      %s  %.1f%%\n", s.MostCloudy.Date, s.MostCloudy.CloudFraction*100)
	fmt.Fprintf(w, "Closest to mean:  %s  %.1f%%\n", s.NearMean.Date, s.NearMean.CloudFraction*100)
	fmt.Fprintln(w)
	for _, sc := range s.Scenes {
		fmt.Fprintf(w, "  %s  cloud %5.1f%%  valid %5.1f%%\n", sc.Date, sc.CloudFraction*100, sc.ValidRatio*100)
	}
}
