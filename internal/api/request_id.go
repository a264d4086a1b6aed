package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDMiddleware 请求 ID 中间件
// 没有 X-Request-ID 头时生成一个,并把请求元信息注入 request context
// 供服务层的审计日志读取
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, "request_id", requestID)
		ctx = context.WithValue(ctx, "ip", c.ClientIP())
		ctx = context.WithValue(ctx, "user_agent", c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserContextMiddleware 把认证中间件写入的用户 ID 注入 request context
// 必须挂在认证中间件之后
func UserContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetString("user_id"); userID != "" {
			ctx := context.WithValue(c.Request.Context(), "user_id", userID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
