package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/config"
	"github.com/rushteam/churnkit/train"
)

var (
	trainData    string
	trainOutput  string
	trainVersion string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a churn model and write its artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModeTrain); err != nil {
			return err
		}
		if trainData == "" {
			return eris.New("--data is required")
		}
		out := trainOutput
		if out == "" {
			out = cfg.Artifacts.Dir
		}

		ds, err := train.LoadCSV(cmd.Context(), trainData)
		if err != nil {
			return err
		}
		result, err := train.NewTrainer(trainerConfig(cfg, trainVersion), zap.L()).Run(cmd.Context(), ds)
		if err != nil {
			return eris.Wrap(err, "train")
		}
		files, err := result.Files()
		if err != nil {
			return eris.Wrap(err, "serialize artifacts")
		}
		if err := artifact.WriteDir(out, files); err != nil {
			return err
		}

		zap.L().Info("artifacts written",
			zap.String("dir", out),
			zap.String("version", result.Config.Version),
			zap.Float64("accuracy", result.Metrics.Accuracy),
			zap.Float64("roc_auc", result.Metrics.ROCAUC),
			zap.Float64("threshold", result.Model.Threshold),
			zap.Float64("optimal_threshold", result.OptimalThreshold))
		return nil
	},
}

func trainerConfig(c *config.Config, version string) train.Config {
	return train.Config{
		ModelName: c.Model.Name,
		Version:   version,
		TestSize:  c.Train.TestSize,
		Seed:      c.Train.Seed,
		Scaling:   c.FeatureEngineering.Scaling,
		LR: train.LRConfig{
			Epochs:       c.Train.Epochs,
			LearningRate: c.Train.LearningRate,
			L2:           c.Train.L2,
		},
	}
}

func init() {
	trainCmd.Flags().StringVar(&trainData, "data", "", "path to the training CSV (required)")
	trainCmd.Flags().StringVar(&trainOutput, "output", "", "artifact directory (default artifacts.dir)")
	trainCmd.Flags().StringVar(&trainVersion, "version", "", "model version (default UTC timestamp)")
	rootCmd.AddCommand(trainCmd)
}
