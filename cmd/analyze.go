package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/viz"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Fingerprint an image and pick its visualization style",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var (
	analyzeSeed int64
	analyzeJSON bool
)

func init() {
	analyzeCmd.Flags().Int64Var(&analyzeSeed, "seed", 0, "Clustering seed (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print JSON instead of text")
}

type analysis struct {
	File     string             `json:"file"`
	Features models.Fingerprint `json:"features"`
	Decision viz.Decision       `json:"decision"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Imaging.Seed = analyzeSeed
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	fp, err := newExtractor(cfg).Extract(cmd.Context(), f)
	if err != nil {
		return err
	}
	selector, err := newSelector(cfg)
	if err != nil {
		return err
	}
	decision := selector.Decide(fp)

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis{File: args[0], Features: fp, Decision: decision})
	}

	p := newPrinter(out)
	p.Title("Image fingerprint")
	for i, c := range fp.Palette {
		p.Field(fmt.Sprintf("Color %d", i+1), "%s", p.Swatch(c))
	}
	p.Field("Brightness", "%.3f", fp.Brightness)
	p.Field("Contrast", "%.3f", fp.Contrast)
	p.Field("Saturation", "%.3f", fp.Saturation)

	p.Title("Visualization")
	for _, s := range models.Styles() {
		p.Field(viz.DisplayName(s), "%.2f", decision.Scores[s])
	}
	p.Field("Style", "%s (%s)", decision.Style, viz.Template(decision.Style))
	if decision.Fallback {
		p.Note("no style scored above %.1f, picked at random", viz.Threshold)
	}
	return nil
}
