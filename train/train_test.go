package train

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/model"
)

// syntheticDataset 生成可分的小数据集：投诉多、用量低的客户流失
func syntheticDataset(n int) *Dataset {
	ds := &Dataset{}
	for i := 0; i < n; i++ {
		churn := i%4 == 0
		rec := core.RawRecord{
			"Call_Failure":            float64(i % 7),
			"Complains":               0.0,
			"Subscription_Length":     float64(10 + i%30),
			"Charge_Amount":           float64(i % 5),
			"Seconds_of_Use":          float64(3000 + 37*i),
			"Frequency_of_use":        float64(40 + i%50),
			"Frequency_of_SMS":        float64(i % 90),
			"Distinct_Called_Numbers": float64(5 + i%20),
			"Age_Group":               float64(1 + i%5),
			"Tariff_Plan":             1.0,
			"Status":                  1.0,
			"Age":                     float64(20 + i%40),
			"Customer_Value":          float64(100 + 3*i),
		}
		label := 0
		if churn {
			rec["Complains"] = 1.0
			rec["Seconds_of_Use"] = float64(50 + i%100)
			rec["Frequency_of_use"] = float64(i % 5)
			rec["Status"] = 2.0
			label = 1
		}
		ds.Records = append(ds.Records, rec)
		ds.Labels = append(ds.Labels, label)
	}
	return ds
}

func testConfig() Config {
	return Config{
		ModelName: "ChurnPredictionModel",
		Version:   "test-1",
		TestSize:  0.2,
		Seed:      42,
		LR:        LRConfig{Epochs: 300, LearningRate: 0.5, L2: 0.001},
	}
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 100)
	for i := 0; i < 20; i++ {
		labels[i] = 1
	}

	trainIdx, testIdx, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, testIdx, 20)
	assert.Len(t, trainIdx, 80)

	positives := 0
	for _, i := range testIdx {
		positives += labels[i]
	}
	assert.Equal(t, 4, positives, "test set keeps the class ratio")

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), trainIdx...), testIdx...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, 100)

	again, againTest, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, trainIdx, again)
	assert.Equal(t, testIdx, againTest)
}

func TestStratifiedSplitErrors(t *testing.T) {
	_, _, err := StratifiedSplit([]int{0, 1, 0}, 0.2, 1)
	assert.Error(t, err, "single positive cannot be stratified")

	_, _, err = StratifiedSplit([]int{0, 0, 1, 1}, 1.5, 1)
	assert.Error(t, err)

	_, _, err = StratifiedSplit([]int{0, 0, 1, 1}, 0, 1)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.3, 0.6, 0.1}
	labels := []int{1, 1, 0, 0, 0}

	m := Evaluate(scores, labels, 0.5)
	assert.Equal(t, [][]int{{2, 1}, {0, 2}}, m.ConfusionMatrix)
	assert.InDelta(t, 0.8, m.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-9)
	assert.InDelta(t, 1.0, m.Recall, 1e-9)
	assert.InDelta(t, 0.8, m.F1, 1e-9)
	assert.InDelta(t, 1.0, m.ROCAUC, 1e-9)
	assert.Equal(t, 0.5, m.Threshold)
}

func TestROCAUC(t *testing.T) {
	assert.InDelta(t, 0.5, ROCAUC([]float64{0.1, 0.9}, []int{1, 1}), 1e-9, "single class")
	assert.InDelta(t, 0.0, ROCAUC([]float64{0.9, 0.1}, []int{0, 1}), 1e-9)
	assert.InDelta(t, 0.5, ROCAUC([]float64{0.5, 0.5}, []int{0, 1}), 1e-9, "ties count half")
	assert.InDelta(t, 0.75, ROCAUC([]float64{0.2, 0.4, 0.3, 0.8}, []int{0, 0, 1, 1}), 1e-9)
}

func TestOptimalThreshold(t *testing.T) {
	scores := []float64{0.1, 0.35, 0.4, 0.8}
	labels := []int{0, 1, 0, 1}
	// 0.35 -> P=2/3 R=1 F1=0.8；0.8 -> F1=2/3；0.1 -> F1=2/3
	assert.Equal(t, 0.35, OptimalThreshold(scores, labels))

	// 完全可分时取最小的满分阈值
	assert.Equal(t, 0.6, OptimalThreshold([]float64{0.2, 0.6, 0.9}, []int{0, 1, 1}))
}

func TestFitLogistic(t *testing.T) {
	ctx := context.Background()
	x, err := core.NewFeatureTableFromRows([]string{"a"}, [][]float64{{-2}, {-1}, {1}, {2}})
	require.NoError(t, err)
	y := []int{0, 0, 1, 1}

	m, err := FitLogistic(ctx, x, y, LRConfig{Epochs: 500, LearningRate: 0.5})
	require.NoError(t, err)
	assert.Greater(t, m.Weights["a"], 0.0)
	assert.InDelta(t, 0.0, m.Bias, 1e-6, "symmetric data keeps bias at zero")

	again, err := FitLogistic(ctx, x, y, LRConfig{Epochs: 500, LearningRate: 0.5})
	require.NoError(t, err)
	assert.Equal(t, m.Weights, again.Weights)

	_, err = FitLogistic(ctx, x, y[:2], LRConfig{Epochs: 1, LearningRate: 0.1})
	assert.Error(t, err)
	_, err = FitLogistic(ctx, x, y, LRConfig{})
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = FitLogistic(cancelled, x, y, LRConfig{Epochs: 10, LearningRate: 0.1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDataset(t *testing.T) {
	ds, err := NewDataset([]core.RawRecord{
		{"Age": 30.0, "Churn": 1.0},
		{"Age": 40.0, "Churn": "0"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, ds.Labels)
	assert.NotContains(t, ds.Records[0], feature.LabelColumn)

	_, err = NewDataset([]core.RawRecord{{"Age": 30.0}})
	assert.Error(t, err)
	_, err = NewDataset([]core.RawRecord{{"Age": 30.0, "Churn": 2.0}})
	assert.Error(t, err)
	_, err = NewDataset(nil)
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	header := strings.Join(append(feature.InputColumns(), feature.LabelColumn), ",")
	var b strings.Builder
	b.WriteString(header + "\n")
	for i := 0; i < 4; i++ {
		fmt.Fprintf(&b, "8,0,38,0,4370,71,5,17,3,1,1,30,197.64,%d\n", i%2)
	}
	path := t.TempDir() + "/churn.csv"
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	ds, err := LoadCSV(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, []int{0, 1, 0, 1}, ds.Labels)

	_, err = LoadCSV(context.Background(), t.TempDir()+"/missing.csv")
	assert.Error(t, err)
}

func TestTrainerRun(t *testing.T) {
	ctx := context.Background()
	ds := syntheticDataset(200)

	res, err := NewTrainer(testConfig(), zap.NewNop()).Run(ctx, ds)
	require.NoError(t, err)

	assert.Equal(t, 160, res.TrainSize)
	assert.Equal(t, 40, res.TestSize)
	assert.True(t, res.Pipeline.Fitted())
	assert.Equal(t, res.Metadata.FeatureColumns, res.Metadata.Contract())
	assert.Len(t, res.Model.Weights, res.Metadata.FeatureCount)
	assert.Greater(t, res.Metrics.ROCAUC, 0.9)
	assert.Greater(t, res.Metrics.Accuracy, 0.9)
	assert.Equal(t, model.DefaultThreshold, res.Model.Threshold)
	assert.True(t, res.OptimalThreshold > 0 && res.OptimalThreshold < 1)
	for name, v := range res.Baseline {
		assert.False(t, math.IsNaN(v), "baseline %s", name)
	}
}

func TestResultFilesLoad(t *testing.T) {
	ctx := context.Background()
	res, err := NewTrainer(testConfig(), zap.NewNop()).Run(ctx, syntheticDataset(120))
	require.NoError(t, err)

	files, err := res.Files()
	require.NoError(t, err)
	for _, name := range []string{
		artifact.FileManifest, artifact.FileFeatureMeta, artifact.FilePreprocess,
		artifact.FileModel, artifact.FileExplainer, artifact.FileModelMetadata,
	} {
		assert.Contains(t, files, name)
	}

	dir := t.TempDir()
	require.NoError(t, artifact.WriteDir(dir, files))

	bundle, err := artifact.Load(ctx, artifact.NewFileSource(dir))
	require.NoError(t, err)
	assert.Equal(t, "ChurnPredictionModel", bundle.Name())
	assert.Equal(t, "test-1", bundle.Version())
	assert.Equal(t, ModelType, bundle.Info.ModelType)
	assert.Equal(t, DatasetName, bundle.Info.Dataset)
	acc, ok := bundle.Info.Accuracy()
	assert.True(t, ok)
	assert.InDelta(t, res.Metrics.Accuracy, acc, 1e-9)
	assert.NotNil(t, bundle.Explainer)

	x, err := bundle.Transformer.TransformRecords(ctx, syntheticDataset(4).Records)
	require.NoError(t, err)
	labels, err := bundle.Classifier.Predict(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, 1, labels[0], "first synthetic record churns")
}

func TestTrainedLabelsFollowProbability(t *testing.T) {
	ctx := context.Background()
	ds := syntheticDataset(200)
	res, err := NewTrainer(testConfig(), zap.NewNop()).Run(ctx, ds)
	require.NoError(t, err)

	files, err := res.Files()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, artifact.WriteDir(dir, files))
	bundle, err := artifact.Load(ctx, artifact.NewFileSource(dir))
	require.NoError(t, err)
	assert.InDelta(t, res.OptimalThreshold, bundle.Info.OptimalThreshold, 1e-12)

	x, err := bundle.Transformer.TransformRecords(ctx, ds.Records)
	require.NoError(t, err)
	proba, err := bundle.Classifier.PredictProba(ctx, x)
	require.NoError(t, err)
	labels, err := bundle.Classifier.Predict(ctx, x)
	require.NoError(t, err)
	require.Len(t, labels, len(proba))
	for i, p := range proba {
		want := 0
		if p[1] >= model.DefaultThreshold {
			want = 1
		}
		assert.Equal(t, want, labels[i], "row %d p=%.4f", i, p[1])
	}
}

func TestNewTrainerDefaults(t *testing.T) {
	tr := NewTrainer(Config{}, nil)
	assert.Equal(t, DefaultModelName, tr.cfg.ModelName)
	assert.Equal(t, feature.ScalingStandard, tr.cfg.Scaling)
	assert.NotEmpty(t, tr.cfg.Version)
}
