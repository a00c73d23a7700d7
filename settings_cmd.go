package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Short:   "Show or change the speech volume and rate",
	Long:    paragraph(fmt.Sprintf("\n%s the saved speech volume and rate. Both are numbers between 0 and 1; the player picks up changes on its next start.", keyword("Show or change"))),
	Example: paragraph("readaloud settings\nreadaloud settings --volume 0.8 --rate 0.6"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if cmd.Flags().Changed("volume") {
			v, _ := cmd.Flags().GetFloat64("volume")
			if err := a.engine.SetVolume(ctx, v); err != nil {
				return fmt.Errorf("unable to save volume: %w", err)
			}
		}
		if cmd.Flags().Changed("rate") {
			r, _ := cmd.Flags().GetFloat64("rate")
			if err := a.engine.SetRate(ctx, r); err != nil {
				return fmt.Errorf("unable to save rate: %w", err)
			}
		}

		fmt.Printf("%s %.2f\n%s %.2f\n",
			keyword("volume"), a.engine.Volume(),
			keyword("rate  "), a.engine.Rate(),
		)
		return nil
	},
}

func init() {
	settingsCmd.Flags().Float64("volume", 0, "speech volume, 0 to 1")
	settingsCmd.Flags().Float64("rate", 0, "speech rate, 0 to 1 (0.5 is normal)")
}
