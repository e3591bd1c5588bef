package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dudu/emoface/internal/inference"
)

var probeMetal bool

var probeCmd = &cobra.Command{
	Use:   "probe <model.onnx>",
	Short: "Check that ONNX Runtime can load a model and print its interface",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	probeCmd.Flags().BoolVar(&probeMetal, "metal", false, "Also try importing the model with go-metal (macOS only)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(w io.Writer, modelPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("model not found: %w", err)
	}

	if err := inference.Initialize(cfg.ORTLibraryPath); err != nil {
		return err
	}
	defer inference.Shutdown()

	info, err := inference.Inspect(modelPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Model: %s\n", info.Path)
	fmt.Fprintf(w, "\nInputs (%d):\n", len(info.Inputs))
	for _, t := range info.Inputs {
		fmt.Fprintf(w, "  %s: shape=%v, type=%s\n", t.Name, t.Shape, t.Type)
	}
	fmt.Fprintf(w, "\nOutputs (%d):\n", len(info.Outputs))
	for _, t := range info.Outputs {
		fmt.Fprintf(w, "  %s: shape=%v, type=%s\n", t.Name, t.Shape, t.Type)
	}

	fmt.Fprintln(w, "\nMetadata:")
	fmt.Fprintf(w, "  Producer: %s\n", info.Producer)
	fmt.Fprintf(w, "  Version: %d\n", info.Version)
	fmt.Fprintf(w, "  Domain: %s\n", info.Domain)
	fmt.Fprintf(w, "  Description: %s\n", info.Description)

	if probeMetal {
		fmt.Fprintln(w, "\ngo-metal import:")
		if err := metalImport(w, modelPath); err != nil {
			fmt.Fprintf(w, "  FAILED: %v\n", err)
		}
	}
	return nil
}
