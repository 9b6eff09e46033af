package attendance

import (
	"errors"
	"fmt"
)

// ===== Error model (checkin/face と同型) =====
// check-in は session・顔照合の両方にまたがるので、下流のコードも全部持つ。

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeNoReference     Code = "NO_REFERENCE"
	CodeUpstream        Code = "UPSTREAM"
	CodeForbidden       Code = "FORBIDDEN"     // 在籍していないクラスへの check-in
	CodeFaceMismatch    Code = "FACE_MISMATCH" // 照合は成立したが一致しなかった
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrForbidden(msg string) *APIError {
	return &APIError{Code: CodeForbidden, Message: msg}
}
func ErrFaceMismatch(msg string) *APIError {
	return &APIError{Code: CodeFaceMismatch, Message: msg}
}
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeForbidden, CodeFaceMismatch:
			return 403
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
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
