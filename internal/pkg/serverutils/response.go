// FILE: internal/pkg/serverutils/response.go
package serverutils

import "prawnik-web/internal/dto"

type BaseResponse[T any] struct {
	Success   bool                   `json:"success"`
	Code      int                    `json:"code"`
	Message   string                 `json:"message"`
	Data      T                      `json:"data,omitempty"`
	ErrorCode dto.ErrorCode          `json:"error_code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Redirect  string                 `json:"redirect,omitempty"`
}

func SuccessResponse[T any](message string, data T) BaseResponse[T] {
	return BaseResponse[T]{
		Success: true,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) BaseResponse[any] {
	return BaseResponse[any]{
		Success: false,
		Code:    code,
		Message: message,
	}
}

// CodedErrorResponse carries the error kind so the page can pick its UI.
func CodedErrorResponse(code int, errorCode dto.ErrorCode, message string, details map[string]interface{}) BaseResponse[any] {
	return BaseResponse[any]{
		Success:   false,
		Code:      code,
		Message:   message,
		ErrorCode: errorCode,
		Details:   details,
	}
}
