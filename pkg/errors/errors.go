package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind 错误分类
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = http.StatusOK
)

// HTTP层错误码
const (
	CodeInvalidParam = http.StatusBadRequest
	CodeUnauthorized = http.StatusUnauthorized
	CodeForbidden    = http.StatusForbidden
	CodeNotFound     = http.StatusNotFound
	CodeConflict     = http.StatusConflict
	CodeServerError  = http.StatusInternalServerError
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Status 错误分类对应的HTTP状态码
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return CodeInvalidParam
	case KindAuthentication:
		return CodeUnauthorized
	case KindAuthorization:
		return CodeForbidden
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeConflict
	default:
		return CodeServerError
	}
}

// AppError 业务错误
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同类同消息的AppError视为相等，便于比较哨兵错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Validation(message string) *AppError     { return New(KindValidation, message) }
func Authentication(message string) *AppError { return New(KindAuthentication, message) }
func Forbidden(message string) *AppError      { return New(KindAuthorization, message) }
func NotFound(message string) *AppError       { return New(KindNotFound, message) }
func Conflict(message string) *AppError       { return New(KindConflict, message) }

// Internal 包装存储层或未知错误
func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

var (
	ErrInvalidCredentials    = Authentication("用户名或密码错误")
	ErrTokenInvalidOrExpired = Authentication("Token无效或已过期")
	ErrSelfTarget            = Validation("不能对自己的账号执行此操作，请使用修改密码功能")
)

// KindOf 提取错误分类，非AppError一律视为内部错误
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus 错误对应的HTTP状态码
func HTTPStatus(err error) int {
	return KindOf(err).Status()
}

// Is 透传标准库errors.Is，避免调用方同时导入两个errors包
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As 透传标准库errors.As
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
