package roomcast

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokmz/roomcast/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`               // 业务状态码
	Data    any    `json:"data,omitempty"`     // 响应数据
	Message string `json:"message"`            // 响应消息
	TraceID string `json:"trace_id,omitempty"` // 追踪ID（可选）
}

// Success 创建成功响应
func Success(data any) *Response {
	return &Response{Code: http.StatusOK, Data: data, Message: "success"}
}

// Fail 创建失败响应
func Fail(code int, message string) *Response {
	return &Response{Code: code, Message: message}
}

// abortWithError 按错误携带的 HTTP 状态码写出失败响应
func abortWithError(c *gin.Context, err *errors.Error) {
	status := err.HttpCode
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	resp := Fail(err.Code, err.Message)
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		resp.TraceID = sc.TraceID().String()
	}
	c.AbortWithStatusJSON(status, resp)
}
