package face

import (
	"errors"
	"fmt"
)

// ===== Error model (checkin/attendance と同型。顔照合固有のコードを追加) =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeNoReference     Code = "NO_REFERENCE" // 顔未登録（不一致とは別物）
	CodeUpstream        Code = "UPSTREAM"     // エンコーダ側の失敗。リトライせずそのまま返す
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError     { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError    { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrNoReference(msg string) *APIError { return &APIError{Code: CodeNoReference, Message: msg} }
func ErrUpstream(msg string) *APIError    { return &APIError{Code: CodeUpstream, Message: msg} }
func ErrInternal(msg string) *APIError    { return &APIError{Code: CodeInternal, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeNoReference:
			return 422
		case CodeUpstream:
			return 502
		default:
			return 500
		}
	}
	return 500
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var code Code = CodeInternal
	msg := err.Error()
	var api *APIError
	if errors.As(err, &api) {
		code, msg = api.Code, api.Message
	}
	return errorBody(code, msg)
}
