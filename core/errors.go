package core

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - 特征转换错误：CONTRACT_VIOLATION（请求级，返回给调用方）
//   - 模型产物错误：ARTIFACT_CORRUPTED（进程级，服务拒绝就绪）
//   - 推理错误：INFERENCE_FAILED
type DomainError struct {
	Code    string // 错误代码（如 "CONTRACT_VIOLATION", "ARTIFACT_CORRUPTED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "feature", "artifact", "model"）
	Err     error  // 原始错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var missing *MissingColumnError
	if errors.As(err, &missing) {
		return missing.domainError()
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建携带原始错误的领域错误
func WrapDomainError(module, code string, err error, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound          = "NOT_FOUND"          // 资源不存在
	ErrorCodeUnavailable       = "UNAVAILABLE"        // 服务不可用
	ErrorCodeInvalidInput      = "INVALID_INPUT"      // 输入无效
	ErrorCodeInternalError     = "INTERNAL_ERROR"     // 内部错误
	ErrorCodeContractViolation = "CONTRACT_VIOLATION" // 原始记录缺少转换所需的列
	ErrorCodeArtifactCorrupted = "ARTIFACT_CORRUPTED" // 模型产物加载失败或结构非法
	ErrorCodeInferenceFailed   = "INFERENCE_FAILED"   // 分类器推理失败
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 存储模块
	ModuleFeature  = "feature"  // 特征模块
	ModulePipeline = "pipeline" // 特征流水线
	ModuleModel    = "model"    // 模型模块
	ModuleArtifact = "artifact" // 模型产物
	ModuleService  = "service"  // 服务模块
)

// MissingColumnError 表示转换阶段需要的源列完全缺失。
// 与对齐阶段的契约列缺失（预期行为，填 0）不同，这是上游数据问题，必须显式失败。
type MissingColumnError struct {
	Stage   string   // 检测到缺失的阶段
	Columns []string // 缺失的列（按需要的顺序）
	Row     int      // 缺失所在的记录下标，-1 表示整张表缺列
}

func (e *MissingColumnError) Error() string {
	quoted := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	if e.Row >= 0 {
		return fmt.Sprintf("%s: record %d missing required column(s) %s", e.Stage, e.Row, strings.Join(quoted, ", "))
	}
	return fmt.Sprintf("%s: missing required column(s) %s", e.Stage, strings.Join(quoted, ", "))
}

func (e *MissingColumnError) domainError() *DomainError {
	return WrapDomainError(ModuleFeature, ErrorCodeContractViolation, e, "feature: contract violation")
}

// NewMissingColumnError 创建缺列错误
func NewMissingColumnError(stage string, row int, columns ...string) *MissingColumnError {
	return &MissingColumnError{Stage: stage, Columns: columns, Row: row}
}

// 通用错误检查函数

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsContractViolation 检查错误是否为调用方输入导致的契约违例（含 MissingColumnError 与非法取值）
func IsContractViolation(err error) bool {
	return hasCode(err, ErrorCodeContractViolation) || hasCode(err, ErrorCodeInvalidInput)
}

// IsArtifactCorrupted 检查错误是否为模型产物损坏
func IsArtifactCorrupted(err error) bool {
	return hasCode(err, ErrorCodeArtifactCorrupted)
}

// IsInferenceFailed 检查错误是否为推理失败
func IsInferenceFailed(err error) bool {
	return hasCode(err, ErrorCodeInferenceFailed)
}
