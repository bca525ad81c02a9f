package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/cueline/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List local audio input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := capture.ListInputs()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		if len(inputs) == 0 {
			fmt.Println("no input devices found")
			return nil
		}
		for _, d := range inputs {
			mark := " "
			if d.IsDefault {
				mark = "*"
			}
			fmt.Printf("%s %2d  %-40s %d ch  %.0f Hz\n", mark, d.Index, d.Name, d.Channels, d.SampleRate)
		}
		return nil
	},
}
