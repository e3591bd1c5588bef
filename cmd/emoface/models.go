package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dudu/emoface/internal/emotion"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the available emotion models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tINPUT\tCLASSES\tVALENCE/AROUSAL\t")
		for _, name := range emotion.ListModels() {
			spec, err := emotion.Lookup(name)
			if err != nil {
				return err
			}

			marker := ""
			if name == emotion.DefaultModel {
				marker = " (default)"
			}
			if name == cfg.EmotionSpec.Name && name != emotion.DefaultModel {
				marker = " (selected)"
			}
			fmt.Fprintf(tw, "%s%s\t%dx%d\t%d\t%t\t\n", name, marker, spec.InputSize, spec.InputSize, len(spec.Labels), spec.MultiTask)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
