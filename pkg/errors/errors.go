// Package errors 提供统一的应用错误类型与错误码定义
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 应用错误码
type ErrorCode int

// 通用错误码
const (
	CodeOK            ErrorCode = 0
	CodeInternalError ErrorCode = 10001
	CodeInvalidParams ErrorCode = 10002
	CodeNotFound      ErrorCode = 10003
	CodeTimeout       ErrorCode = 10004
	CodeRateLimited   ErrorCode = 10005
	CodeUnavailable   ErrorCode = 10006
)

// 研究工作流错误码
const (
	CodeClassificationFailed ErrorCode = 20001
	CodeCollectionFailed     ErrorCode = 20002
	CodeRetrievalFailed      ErrorCode = 20003
	CodeAnalysisFailed       ErrorCode = 20004
	CodeReportFailed         ErrorCode = 20005
	CodeWorkflowAborted      ErrorCode = 20006
	CodeMalformedOutput      ErrorCode = 20007
)

// 基础设施错误码
const (
	CodeMarketDataError  ErrorCode = 30001
	CodeNewsError        ErrorCode = 30002
	CodeFilingsError     ErrorCode = 30003
	CodeVectorDBError    ErrorCode = 30004
	CodeCacheError       ErrorCode = 30005
	CodeDatabaseError    ErrorCode = 30006
	CodeEmbeddingError   ErrorCode = 30007
	CodeRerankError      ErrorCode = 30008
	CodeLLMProviderError ErrorCode = 30009
)

// codeMessages 错误码对应的默认描述
var codeMessages = map[ErrorCode]string{
	CodeOK:                   "成功",
	CodeInternalError:        "内部错误",
	CodeInvalidParams:        "参数无效",
	CodeNotFound:             "资源不存在",
	CodeTimeout:              "请求超时",
	CodeRateLimited:          "请求过于频繁",
	CodeUnavailable:          "服务暂不可用",
	CodeClassificationFailed: "意图分类失败",
	CodeCollectionFailed:     "数据收集失败",
	CodeRetrievalFailed:      "检索失败",
	CodeAnalysisFailed:       "分析失败",
	CodeReportFailed:         "报告生成失败",
	CodeWorkflowAborted:      "工作流中止",
	CodeMalformedOutput:      "模型输出格式异常",
	CodeMarketDataError:      "行情数据源错误",
	CodeNewsError:            "新闻数据源错误",
	CodeFilingsError:         "披露文件数据源错误",
	CodeVectorDBError:        "向量数据库错误",
	CodeCacheError:           "缓存错误",
	CodeDatabaseError:        "数据库错误",
	CodeEmbeddingError:       "向量化服务错误",
	CodeRerankError:          "重排服务错误",
	CodeLLMProviderError:     "大模型服务错误",
}

// AppError 应用错误，携带错误码、描述与底层原因
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Cause     error     `json:"-"`
	transient bool
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 附加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// Transient 标记该错误为瞬态错误，允许重试
func (e *AppError) Transient() *AppError {
	e.transient = true
	return e
}

// HTTPStatus 返回错误码对应的 HTTP 状态码
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParams:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New 创建应用错误，使用错误码默认描述
func New(code ErrorCode) *AppError {
	return &AppError{Code: code, Message: messageOf(code)}
}

// Newf 创建应用错误并格式化描述
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
func Wrap(code ErrorCode, cause error) *AppError {
	return &AppError{Code: code, Message: messageOf(code), Cause: cause}
}

// Wrapf 包装底层错误并格式化描述
func Wrapf(code ErrorCode, cause error, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func messageOf(code ErrorCode) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// IsTransient 判断错误是否为瞬态错误，瞬态错误可重试
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.transient
	}
	return false
}

// CodeOf 提取错误码，非 AppError 返回 CodeInternalError
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}

// As 暴露标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 暴露标准库 errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}
