package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式
type Response struct {
	Code    int         `json:"code"`    // 状态码: 0 表示成功,非 0 表示失败
	Message string      `json:"message"` // 响应消息
	Data    interface{} `json:"data"`    // 响应数据
}

// ErrorResponse 错误响应格式
type ErrorResponse struct {
	Code    int         `json:"code"`             // 错误码
	Message string      `json:"message"`          // 错误消息
	Detail  string      `json:"detail,omitempty"` // 错误详情(可选)
	Issues  interface{} `json:"issues,omitempty"` // 结构校验问题清单(可选)
}

// PaginatedResponse 分页响应
type PaginatedResponse struct {
	Code       int            `json:"code"`
	Message    string         `json:"message"`
	Data       interface{}    `json:"data"`       // 数据列表
	Pagination PaginationInfo `json:"pagination"` // 分页信息
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int   `json:"page"`       // 当前页码
	PageSize  int   `json:"page_size"`  // 每页数量
	Total     int64 `json:"total"`      // 总记录数
	TotalPage int   `json:"total_page"` // 总页数
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string, detail string) {
	statusCode := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		statusCode = code
	}

	c.JSON(statusCode, ErrorResponse{
		Code:    code,
		Message: message,
		Detail:  detail,
	})
}

// ValidationFailed 结构校验未通过响应,携带完整问题清单
func ValidationFailed(c *gin.Context, message string, issues interface{}) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Code:    http.StatusUnprocessableEntity,
		Message: message,
		Issues:  issues,
	})
}

// Paginated 分页响应
func Paginated(c *gin.Context, data interface{}, pagination PaginationInfo) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Code:       0,
		Message:    "success",
		Data:       data,
		Pagination: pagination,
	})
}
