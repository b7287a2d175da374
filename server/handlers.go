package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rushteam/churnkit/core"
	"github.com/rushteam/churnkit/feature"
	"github.com/rushteam/churnkit/service"
)

const (
	detailModelNotLoaded = "Model not loaded"
	detailCSVOnly        = "Only CSV files are supported"
)

// HealthResponse /health 响应
type HealthResponse struct {
	Status       string  `json:"status"`
	ModelName    string  `json:"model_name"`
	ModelVersion string  `json:"model_version"`
	Source       string  `json:"source"`
	Accuracy     float64 `json:"accuracy"`
	Features     int     `json:"features"`
}

// ModelInfoResponse /model/info 响应
type ModelInfoResponse struct {
	ModelType    string         `json:"model_type"`
	ModelName    string         `json:"model_name"`
	ModelVersion string         `json:"model_version"`
	Source       string         `json:"source"`
	Dataset      string         `json:"dataset"`
	FeatureCount int            `json:"feature_count"`
	FeatureNames []string       `json:"feature_names"`
	Metrics      map[string]any `json:"metrics"`
	Classifier   string         `json:"classifier"`
	Explainer    string         `json:"explainer"`
}

// MonitoringResponse /monitoring 响应
type MonitoringResponse struct {
	Status        string                 `json:"status"`
	ModelVersion  string                 `json:"model_version"`
	ModelSource   string                 `json:"model_source"`
	DataQuality   string                 `json:"data_quality"`
	RecordsSeen   int64                  `json:"records_seen"`
	QualityIssues map[string]int64       `json:"quality_issues"`
	Features      []feature.FeatureStats `json:"features"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.Ready() {
		s.writeError(w, r, http.StatusServiceUnavailable, detailModelNotLoaded, core.ErrorCodeUnavailable)
		return
	}
	b := s.predictor.Bundle()
	acc, _ := b.Info.Accuracy()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		ModelName:    b.Name(),
		ModelVersion: b.Version(),
		Source:       b.Source,
		Accuracy:     acc,
		Features:     len(b.Metadata.FeatureColumns),
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if !s.Ready() {
		s.writeError(w, r, http.StatusServiceUnavailable, "Model metadata not available", core.ErrorCodeUnavailable)
		return
	}
	b := s.predictor.Bundle()
	metrics := b.Info.Metrics
	if metrics == nil {
		metrics = map[string]any{}
	}
	modelType := b.Info.ModelType
	if modelType == "" {
		modelType = "Unknown"
	}
	writeJSON(w, http.StatusOK, ModelInfoResponse{
		ModelType:    modelType,
		ModelName:    b.Name(),
		ModelVersion: b.Version(),
		Source:       b.Source,
		Dataset:      b.Info.Dataset,
		FeatureCount: len(b.Metadata.FeatureColumns),
		FeatureNames: b.Metadata.FeatureColumns,
		Metrics:      metrics,
		Classifier:   b.Classifier.Name(),
		Explainer:    b.Manifest.Explainer.Type,
	})
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("feature"); name != "" {
		s.handleFeatureStats(w, r, name)
		return
	}
	resp := MonitoringResponse{
		Status:        "active",
		DataQuality:   "All checks passed",
		QualityIssues: map[string]int64{},
		Features:      []feature.FeatureStats{},
	}
	if s.Ready() {
		b := s.predictor.Bundle()
		resp.ModelVersion = b.Version()
		resp.ModelSource = b.Source
		if m := s.predictor.Monitor(); m != nil {
			sum := m.Summary(r.Context())
			resp.Status = sum.Status
			resp.RecordsSeen = sum.RecordsSeen
			resp.QualityIssues = sum.QualityIssues
			resp.Features = sum.Features
		}
	}
	if len(resp.QualityIssues) > 0 {
		resp.DataQuality = "Quality warnings recorded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFeatureStats GET /monitoring?feature=<name>，返回单个特征的统计
func (s *Server) handleFeatureStats(w http.ResponseWriter, r *http.Request, name string) {
	var m service.Monitor
	if s.Ready() {
		m = s.predictor.Monitor()
	}
	if m == nil {
		s.writeError(w, r, http.StatusNotFound, "Feature not monitored: "+name, core.ErrorCodeNotFound)
		return
	}
	stats, err := m.GetFeatureStats(r.Context(), name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !s.Ready() {
		s.writeError(w, r, http.StatusServiceUnavailable, detailModelNotLoaded, core.ErrorCodeUnavailable)
		return
	}
	var req CustomerRequest
	if !s.decode(w, r, &req) {
		return
	}
	pred, err := s.predictor.Predict(r.Context(), req.Record())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if !s.Ready() {
		s.writeError(w, r, http.StatusServiceUnavailable, detailModelNotLoaded, core.ErrorCodeUnavailable)
		return
	}
	var req BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.predictor.PredictBatch(r.Context(), req.Records())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePredictCSV(w http.ResponseWriter, r *http.Request) {
	if !s.Ready() {
		s.writeError(w, r, http.StatusServiceUnavailable, detailModelNotLoaded, core.ErrorCodeUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "multipart field \"file\" is required", core.ErrorCodeInvalidInput)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		s.writeError(w, r, http.StatusBadRequest, detailCSVOnly, core.ErrorCodeInvalidInput)
		return
	}

	res, err := s.predictor.PredictCSV(r.Context(), file)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decode 解析并校验 JSON 请求体，失败时已写出响应
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error(), core.ErrorCodeInvalidInput)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			s.writeError(w, r, http.StatusBadRequest, err.Error(), core.ErrorCodeInvalidInput)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Detail:    "request validation failed",
			Code:      core.ErrorCodeInvalidInput,
			Fields:    fields,
			RequestID: RequestIDFromContext(r.Context()),
		})
		return false
	}
	return true
}

// writeDomainError 把领域错误映射为 HTTP 状态码
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, core.ErrorCodeInternalError
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
		switch de.Code {
		case core.ErrorCodeContractViolation:
			status = http.StatusUnprocessableEntity
		case core.ErrorCodeInvalidInput:
			status = http.StatusBadRequest
		case core.ErrorCodeUnavailable:
			status = http.StatusServiceUnavailable
		case core.ErrorCodeNotFound:
			status = http.StatusNotFound
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("prediction error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
	}
	s.writeError(w, r, status, err.Error(), code)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, detail, code string) {
	writeJSON(w, status, ErrorResponse{
		Detail:    detail,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
