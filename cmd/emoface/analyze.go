package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dudu/emoface/internal/imaging"
	"github.com/dudu/emoface/internal/pipeline"
)

var analyzeOpts struct {
	OutDir  string
	Quality int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>...",
	Short: "Detect faces and their emotions in local images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.OutOrStdout(), args)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.OutDir, "out", "o", "", "Write each face crop as JPEG into this directory")
	analyzeCmd.Flags().IntVarP(&analyzeOpts.Quality, "quality", "q", 90, "JPEG quality for --out")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(w io.Writer, paths []string) error {
	if analyzeOpts.OutDir != "" {
		if err := os.MkdirAll(analyzeOpts.OutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	var bar *progressbar.ProgressBar
	if len(paths) > 1 {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Analyzing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	failed := 0
	for n, path := range paths {
		report, err := p.Analyze(path)
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			failed++
			logger.Errorf("%s: %v", path, err)
			continue
		}

		if len(paths) > 1 {
			fmt.Fprintf(w, "# %s\n", path)
		}
		printResults(w, report.Results)
		logger.Debugf("%s analyzed in %v (detection %v, classification %v)",
			path, report.Timing.Total, report.Timing.Detection, report.Timing.Classification)

		if analyzeOpts.OutDir != "" {
			if err := writeCrops(analyzeOpts.OutDir, n, path, report.Results); err != nil {
				failed++
				logger.Errorf("%s: %v", path, err)
			}
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

// printResults writes one "index emotion confidence box" line per face
func printResults(w io.Writer, results []pipeline.Result) {
	for i, r := range results {
		b := r.Box.Rect()
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%d,%d,%d,%d\n", i, r.Emotion, r.Confidence, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}
}

// writeCrops saves result faces as <n>_<image>_face<i>_<emotion>.jpg, where
// n is the position of the image on the command line
func writeCrops(dir string, n int, imagePath string, results []pipeline.Result) error {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	for i, r := range results {
		jpg, err := imaging.EncodeJPEG(r.Face, analyzeOpts.Quality)
		if err != nil {
			return fmt.Errorf("failed to encode face %d: %w", i, err)
		}
		name := fmt.Sprintf("%03d_%s_face%d_%s.jpg", n, base, i, strings.ToLower(r.Emotion))
		if err := os.WriteFile(filepath.Join(dir, name), jpg, 0o644); err != nil {
			return fmt.Errorf("failed to write face %d: %w", i, err)
		}
	}
	return nil
}
