package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"idmerge/internal/classify"
	"idmerge/internal/common"
	"idmerge/internal/imgcheck"
)

var recognizeFlags struct {
	file string
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Classify a single image and print both side verdicts",
	Long: `Run the side classifier on one image and print the full candidate as JSON:
front and back scores, the reason lines behind each, and the recommended
side. Useful for debugging false classifications.`,
	RunE: runRecognize,
}

func init() {
	recognizeCmd.Flags().StringVar(&recognizeFlags.file, "file", "", "image file to classify (required)")
	_ = recognizeCmd.MarkFlagRequired("file")
}

func runRecognize(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(recognizeFlags.file)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	info, err := imgcheck.Check(data)
	if err != nil {
		return err
	}
	logger.Info("image ok", "format", info.Format, "width", info.Width, "height", info.Height)

	gw, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}
	val, err := buildValidator(cfg)
	if err != nil {
		return err
	}

	cls := classify.NewClassifier(gw, val, logger)
	cand := cls.Classify(cmd.Context(), filepath.Base(recognizeFlags.file), data)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cand)
}
