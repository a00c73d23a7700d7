package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove everything from the saved queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		if err := a.restore(cmd.Context()); err != nil {
			return err
		}
		n := a.queue.Len()
		a.queue.Clear()

		fmt.Printf("Removed %d item(s).\n", n)
		return nil
	},
}
