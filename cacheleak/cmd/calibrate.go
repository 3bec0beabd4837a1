package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cacheleak/calibration"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure hit and miss latencies of the target.",
	RunE: func(_ *cobra.Command, _ []string) error {
		s := newSession(profile)

		cal, err := calibrateSession(s)
		if err != nil {
			return err
		}

		fmt.Printf("Hit:  mean %.1f, p95 %.0f, max %.0f\n",
			cal.Hit.Mean, cal.Hit.P95, cal.Hit.Max)
		fmt.Printf("Miss: mean %.1f, p5 %.0f, min %.0f\n",
			cal.Miss.Mean, cal.Miss.P5, cal.Miss.Min)
		fmt.Printf("Welch t: %.1f (separable above %.0f)\n",
			cal.T, calibration.TModerate)
		fmt.Printf("Suggested threshold: %d (profile uses %d)\n",
			cal.Threshold, s.cfg.Threshold)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
}
