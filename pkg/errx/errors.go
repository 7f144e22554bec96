package errx

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodeTooManyRules Code = "TOO_MANY_RULES"
	CodeStorage      Code = "STORAGE"
	CodeFilterEngine Code = "FILTER_ENGINE"
	CodeNotAttached  Code = "NOT_ATTACHED"
)

type Error struct {
	Code Code
	Msg  string
	Err  error
}

// Error 返回错误的字符串表示
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap 返回底层错误以支持errors.Unwrap
func (e *Error) Unwrap() error { return e.Err }

// New 创建带代码与消息的错误
func New(code Code, msg string) *Error { return &Error{Code: code, Msg: msg} }

// Wrap 包装底层错误并附加代码与消息
func Wrap(code Code, err error, msg string) *Error { return &Error{Code: code, Msg: msg, Err: err} }

// Is 判断错误是否为指定代码
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	var c *CapacityError
	if errors.As(err, &c) {
		return code == CodeTooManyRules
	}
	return false
}

// CapacityError 启用规则数超出过滤引擎上限
type CapacityError struct {
	Count int
	Limit int
}

// Error 返回错误的字符串表示，格式为 count/limit
func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: enabled rules %d/%d exceed engine capacity", CodeTooManyRules, e.Count, e.Limit)
}

// TooManyRules 创建容量超限错误
func TooManyRules(count, limit int) *CapacityError {
	return &CapacityError{Count: count, Limit: limit}
}
