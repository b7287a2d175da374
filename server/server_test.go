package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rushteam/churnkit/artifact"
	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/service"
	"github.com/rushteam/churnkit/train"
)

const customerJSON = `{
	"Call_Failure": 8, "Complains": 1, "Subscription_Length": 38, "Charge_Amount": 0,
	"Seconds_of_Use": 40, "Frequency_of_use": 71, "Frequency_of_SMS": 5,
	"Distinct_Called_Numbers": 17, "Age_Group": 3, "Tariff_Plan": 1, "Status": 1,
	"Age": 30, "Customer_Value": 197.64
}`

func trainingRecord(i int) core.RawRecord {
	rec := core.RawRecord{
		"Call_Failure":            float64(i % 6),
		"Complains":               0.0,
		"Subscription_Length":     float64(12 + i%24),
		"Charge_Amount":           float64(i % 4),
		"Seconds_of_Use":          float64(2500 + 41*i),
		"Frequency_of_use":        float64(30 + i%40),
		"Frequency_of_SMS":        float64(i % 60),
		"Distinct_Called_Numbers": float64(3 + i%25),
		"Age_Group":               float64(1 + i%5),
		"Tariff_Plan":             1.0,
		"Status":                  1.0,
		"Age":                     float64(19 + i%40),
		"Customer_Value":          float64(80 + 2*i),
	}
	if i%5 == 0 {
		rec["Complains"] = 1.0
		rec["Seconds_of_Use"] = float64(20 + i%60)
	}
	return rec
}

var (
	artifactsOnce sync.Once
	artifactsDir  string
	artifactsErr  error
)

func loadBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	artifactsOnce.Do(func() {
		ds := &train.Dataset{}
		for i := 0; i < 100; i++ {
			ds.Records = append(ds.Records, trainingRecord(i))
			label := 0
			if i%5 == 0 {
				label = 1
			}
			ds.Labels = append(ds.Labels, label)
		}
		cfg := train.Config{Version: "http-test", TestSize: 0.2, Seed: 42,
			LR: train.LRConfig{Epochs: 200, LearningRate: 0.5}}
		res, err := train.NewTrainer(cfg, zap.NewNop()).Run(context.Background(), ds)
		if err != nil {
			artifactsErr = err
			return
		}
		files, err := res.Files()
		if err != nil {
			artifactsErr = err
			return
		}
		if artifactsDir, artifactsErr = os.MkdirTemp("", "churnkit-server-"); artifactsErr == nil {
			artifactsErr = artifact.WriteDir(artifactsDir, files)
		}
	})
	require.NoError(t, artifactsErr)
	b, err := artifact.Load(context.Background(), artifact.NewFileSource(artifactsDir))
	require.NoError(t, err)
	return b
}

type testEnv struct {
	handler http.Handler
	monitor *feature.MemoryFeatureMonitor
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	reg := prometheus.NewRegistry()
	monitor := feature.NewMemoryFeatureMonitor(100, time.Minute)
	t.Cleanup(monitor.Close)

	p, err := service.NewPredictor(loadBundle(t),
		service.WithMetrics(service.NewMetrics(reg)),
		service.WithMonitor(monitor),
		service.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return &testEnv{handler: New(p, reg, opts, zap.NewNop()).Handler(), monitor: monitor}
}

func do(h http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNotReady(t *testing.T) {
	h := New(nil, prometheus.NewRegistry(), DefaultOptions(), zap.NewNop()).Handler()

	rec := do(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Model not loaded", decodeBody[ErrorResponse](t, rec).Detail)

	rec = do(h, http.MethodPost, "/predict", "application/json", []byte(customerJSON))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(h, http.MethodGet, "/model/info", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(h, http.MethodGet, "/monitoring", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", decodeBody[MonitoringResponse](t, rec).Status)

	rec = do(h, http.MethodGet, "/monitoring?feature=Age", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	rec := do(env.handler, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, train.DefaultModelName, h.ModelName)
	assert.Equal(t, "http-test", h.ModelVersion)
	assert.True(t, strings.HasPrefix(h.Source, "local:"))
	assert.Greater(t, h.Features, 20)
	assert.Greater(t, h.Accuracy, 0.0)

	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	_, err := strconv.ParseFloat(rec.Header().Get(HeaderProcessTime), 64)
	assert.NoError(t, err)
}

func TestRequestIDPropagates(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestPredictEndpoint(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	rec := do(env.handler, http.MethodPost, "/predict", "application/json", []byte(customerJSON))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pred := decodeBody[service.Prediction](t, rec)
	assert.Equal(t, 1, pred.ChurnPrediction)
	assert.Equal(t, service.RiskLevel(pred.ChurnProbability), pred.RiskLevel)
	assert.Len(t, pred.TopRiskFactors, 3)

	rec = do(env.handler, http.MethodGet, "/monitoring", "", nil)
	mon := decodeBody[MonitoringResponse](t, rec)
	assert.Equal(t, int64(1), mon.RecordsSeen)
	assert.Equal(t, "http-test", mon.ModelVersion)
}

func TestMonitoringFeatureStats(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	rec := do(env.handler, http.MethodGet, "/monitoring?feature=Age", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, core.ErrorCodeNotFound, decodeBody[ErrorResponse](t, rec).Code)

	rec = do(env.handler, http.MethodPost, "/predict", "application/json", []byte(customerJSON))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.monitor.Refresh()

	rec = do(env.handler, http.MethodGet, "/monitoring?feature=Age", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decodeBody[feature.FeatureStats](t, rec)
	assert.Equal(t, "Age", stats.FeatureName)
	assert.Equal(t, int64(1), stats.UsageCount)
	assert.InDelta(t, 30.0, stats.Mean, 1e-9)

	rec = do(env.handler, http.MethodGet, "/monitoring?feature=Unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictValidation(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	rec := do(env.handler, http.MethodPost, "/predict", "application/json", []byte(`{"Age": 30`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(customerJSON), &body))
	delete(body, "Seconds_of_Use")
	body["Tariff_Plan"] = 7
	raw, _ := json.Marshal(body)

	rec = do(env.handler, http.MethodPost, "/predict", "application/json", raw)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "required", errResp.Fields["CustomerRequest.SecondsOfUse"])
	assert.Equal(t, "max", errResp.Fields["CustomerRequest.TariffPlan"])
}

func TestPredictNegativeValueWarnsOnly(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	body := strings.Replace(customerJSON, `"Age": 30`, `"Age": -4`, 1)

	rec := do(env.handler, http.MethodPost, "/predict", "application/json", []byte(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(env.handler, http.MethodGet, "/monitoring", "", nil)
	mon := decodeBody[MonitoringResponse](t, rec)
	assert.Equal(t, int64(1), mon.QualityIssues["Negative values in Age"])
	assert.Equal(t, "Quality warnings recorded", mon.DataQuality)
}

func TestPredictBatchEndpoint(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	low := strings.Replace(strings.Replace(customerJSON, `"Complains": 1`, `"Complains": 0`, 1),
		`"Seconds_of_Use": 40`, `"Seconds_of_Use": 6000`, 1)
	payload := `{"customers": [` + customerJSON + `,` + low + `]}`

	rec := do(env.handler, http.MethodPost, "/predict/batch", "application/json", []byte(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[service.BatchResult](t, rec)
	assert.Equal(t, 2, res.TotalCustomers)
	require.Len(t, res.Predictions, 2)
	for _, p := range res.Predictions {
		assert.Empty(t, p.TopRiskFactors)
	}
	high := 0
	for _, p := range res.Predictions {
		if p.RiskLevel == service.RiskHigh {
			high++
		}
	}
	assert.Equal(t, high, res.HighRiskCount)

	rec = do(env.handler, http.MethodPost, "/predict/batch", "application/json", []byte(`{"customers": [{"Age": 3}]}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func multipartCSV(t *testing.T, filename, content string) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.Bytes()
}

func TestPredictCSVEndpoint(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	csv := strings.Join(feature.InputColumns(), ",") + "\n" +
		"8,1,38,0,40,71,5,17,3,1,1,30,197.64\n" +
		"0,0,20,2,5000,60,30,20,2,1,1,25,300\n" +
		"1,0,30,1,4000,50,10,12,3,1,1,40,150\n"

	ct, body := multipartCSV(t, "customers.csv", csv)
	rec := do(env.handler, http.MethodPost, "/predict/batch/csv", ct, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[service.BatchResult](t, rec)
	assert.Equal(t, 3, res.TotalCustomers)
	assert.Len(t, res.Predictions, 3)

	ct, body = multipartCSV(t, "customers.xlsx", csv)
	rec = do(env.handler, http.MethodPost, "/predict/batch/csv", ct, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only CSV files are supported", decodeBody[ErrorResponse](t, rec).Detail)

	ct, body = multipartCSV(t, "broken.csv", "Age,Complains\n30,1\n")
	rec = do(env.handler, http.MethodPost, "/predict/batch/csv", ct, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, core.ErrorCodeContractViolation, decodeBody[ErrorResponse](t, rec).Code)

	rec = do(env.handler, http.MethodPost, "/predict/batch/csv", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelInfo(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	rec := do(env.handler, http.MethodGet, "/model/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[ModelInfoResponse](t, rec)
	assert.Equal(t, train.ModelType, info.ModelType)
	assert.Equal(t, train.DatasetName, info.Dataset)
	assert.Equal(t, info.FeatureCount, len(info.FeatureNames))
	assert.Contains(t, info.Metrics, "accuracy")
	assert.Contains(t, info.Metrics, "confusion_matrix")
	assert.Equal(t, "lr", info.Classifier)
	assert.Equal(t, "linear", info.Explainer)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	do(env.handler, http.MethodPost, "/predict", "application/json", []byte(customerJSON))

	rec := do(env.handler, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "churnkit_predictions_total")
	assert.Contains(t, rec.Body.String(), `churnkit_model_info{name="ChurnPredictionModel"`)
}

func TestRateLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.RateLimit = 0.001
	opts.RateBurst = 1
	env := newTestEnv(t, opts)

	rec := do(env.handler, http.MethodPost, "/predict", "application/json", []byte(customerJSON))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(env.handler, http.MethodPost, "/predict", "application/json", []byte(customerJSON))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// 健康检查不受限流影响
	rec = do(env.handler, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
