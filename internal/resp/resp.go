// Package resp 提供统一的 HTTP 响应封装。
// 所有 API 返回同一结构，业务码与 HTTP 状态码解耦。
package resp

import (
	"encoding/json"
	"net/http"
)

// Code 定义业务响应码
type Code int

const (
	CodeOK            Code = 0
	CodeInvalidParam  Code = 40001
	CodeUnauthorized  Code = 40101
	CodeNotFound      Code = 40401
	CodeConflict      Code = 40901
	CodeTimeout       Code = 50401
	CodeInternalError Code = 50001
)

// HTTPStatusFromCode 返回业务码对应的默认 HTTP 状态码
func HTTPStatusFromCode(code Code) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Response 是统一响应体
type Response struct {
	Code      Code        `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WriteJSON 将响应体以 JSON 写出
func WriteJSON(w http.ResponseWriter, status int, body *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK 写出成功响应
func OK(w http.ResponseWriter, data interface{}, requestID, traceID string) {
	WriteJSON(w, http.StatusOK, &Response{
		Code:      CodeOK,
		Message:   "success",
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// Error 写出错误响应
func Error(w http.ResponseWriter, status int, code Code, message, requestID, traceID string) {
	WriteJSON(w, status, &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		TraceID:   traceID,
	})
}
