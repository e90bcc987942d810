package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the face model from captured samples",
	Long: `Train the face model on every captured sample and save the artifact.

Samples are grouped by the serial embedded in their file names; the serial
is the label the model predicts during recognition. Training replaces the
artifact atomically, so a failed run never corrupts the previous model.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.pipeline.Train(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Trained on %d samples\n", n)
	fmt.Printf("Artifact saved to %s\n", a.cfg.Store.ArtifactPath)
	return nil
}
