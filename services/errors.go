package services

import "fmt"

// AppError 携带 HTTP 状态码的业务错误。
// Data 用于需要附带负载的场景，比如分片规划上限和冲突明细。
type AppError struct {
	HTTPCode int
	Message  string
	Data     any
	Err      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newAppError(httpCode int, message string, err error) *AppError {
	return &AppError{HTTPCode: httpCode, Message: message, Err: err}
}

func newAppErrorWithData(httpCode int, message string, data any, err error) *AppError {
	return &AppError{HTTPCode: httpCode, Message: message, Data: data, Err: err}
}
