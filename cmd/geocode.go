package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/naf-analyzer/internal/proximity"
	"github.com/sells-group/naf-analyzer/pkg/geocode"
)

var geocodeOffline bool

// geocodeResult is the output of the geocode command.
type geocodeResult struct {
	City           string           `json:"city"`
	State          string           `json:"state"`
	Location       geocode.Location `json:"location"`
	NearestAcademy string           `json:"nearest_academy,omitempty"`
	DistanceKM     *float64         `json:"distance_km,omitempty"`
	ProxStrong     int              `json:"prox_strong"`
	ProxWeak       int              `json:"prox_weak"`
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode CITY STATE",
	Short: "Resolve a city and report its nearest academy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initFeatures(ctx, envOptions{Offline: geocodeOffline})
		if err != nil {
			return eris.Wrap(err, "geocode: init")
		}
		defer env.Close()

		loc := env.Geocoder.Resolve(ctx, args[0], args[1])
		return writeJSON(os.Stdout, locate(args[0], args[1], loc, env.Refs.Academies, cfg.Proximity.Tiers()))
	},
}

func init() {
	geocodeCmd.Flags().BoolVar(&geocodeOffline, "offline", false, "resolve from the static place list only")
	rootCmd.AddCommand(geocodeCmd)
}

func locate(city, state string, loc geocode.Location, academies *proximity.Table, tiers proximity.Tiers) geocodeResult {
	out := geocodeResult{City: city, State: state, Location: loc}
	nearest, ok := academies.Nearest(loc)
	if ok {
		d := nearest.DistanceKM
		out.DistanceKM = &d
		out.NearestAcademy = nearest.Academy.Name
	}
	out.ProxStrong, out.ProxWeak = tiers.Classify(nearest.DistanceKM, ok)
	return out
}
