package response

import (
	"errors"
	"net/http"

	"github.com/mthirumalai2905/clubly-community-hub/internal/service"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`             // 状态码：0表示成功，其他表示错误
	Message string      `json:"message"`          // 响应消息
	Data    interface{} `json:"data,omitempty"`   // 响应数据
	Reason  string      `json:"reason,omitempty"` // 业务错误代码，供客户端区分错误
	Error   string      `json:"error,omitempty"`  // 错误详情（仅在开发环境显示）
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应，HTTP状态码与 code 一致
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// ErrorWithDetails 带错误详情的错误响应
func ErrorWithDetails(c *gin.Context, code int, message string, err error) {
	response := Response{
		Code:    code,
		Message: message,
	}

	// 在开发环境下显示错误详情
	if gin.Mode() == gin.DebugMode && err != nil {
		response.Error = err.Error()
	}

	c.JSON(code, response)
}

// BadRequest 400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401错误
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// Fail 把服务层错误映射为响应；非业务错误统一返回500，细节只在开发环境展示
func Fail(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		ErrorWithDetails(c, http.StatusInternalServerError, "操作失败，请稍后重试", err)
		return
	}

	code := http.StatusBadRequest
	switch e.Kind {
	case service.KindConflict:
		code = http.StatusConflict
	case service.KindNotFound:
		code = http.StatusNotFound
	case service.KindForbidden:
		code = http.StatusForbidden
	}
	c.JSON(code, Response{
		Code:    code,
		Message: e.Message,
		Reason:  e.Code,
	})
}
