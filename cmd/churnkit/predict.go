package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/service"
)

var (
	predictInput  string
	predictOutput string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score customers from a CSV or JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictInput == "" {
			return eris.New("--input is required")
		}
		ctx := cmd.Context()

		bundle, err := loadBundle(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "load model")
		}
		if bundle == nil {
			return eris.New("no model available")
		}
		predictor, err := service.NewPredictor(bundle, predictorOptions(cfg)...)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(predictInput)
		if err != nil {
			return eris.Wrapf(err, "read %s", predictInput)
		}

		var result any
		if strings.EqualFold(filepath.Ext(predictInput), ".csv") {
			result, err = predictor.PredictCSV(ctx, bytes.NewReader(data))
		} else {
			result, err = predictJSON(cmd, predictor, data)
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if predictOutput != "" {
			f, err := os.Create(predictOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", predictOutput)
			}
			defer f.Close()
			w = f
		}
		return writeIndented(w, result)
	},
}

// predictJSON 接受单个客户对象或客户数组
func predictJSON(cmd *cobra.Command, predictor *service.Predictor, data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []core.RawRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, eris.Wrap(err, "decode customers")
		}
		return predictor.PredictBatch(cmd.Context(), records)
	}
	var record core.RawRecord
	if err := json.Unmarshal(trimmed, &record); err != nil {
		return nil, eris.Wrap(err, "decode customer")
	}
	return predictor.Predict(cmd.Context(), record)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	predictCmd.Flags().StringVar(&predictInput, "input", "", "customer file: .csv, or JSON object/array (required)")
	predictCmd.Flags().StringVarP(&predictOutput, "output", "o", "", "write results to file (default: stdout)")
	rootCmd.AddCommand(predictCmd)
}
