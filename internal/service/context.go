package service

import "context"

// getUserIDFromContext 从 context 获取用户 ID
func getUserIDFromContext(ctx context.Context) string {
	if v := ctx.Value("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// getRequestIDFromContext 从 context 获取请求 ID
func getRequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value("request_id"); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	if v := ctx.Value("ip"); v != nil {
		if ip, ok := v.(string); ok {
			return ip
		}
	}
	return ""
}

// GetUserAgent 从 context 获取 User-Agent
func GetUserAgent(ctx context.Context) string {
	if v := ctx.Value("user_agent"); v != nil {
		if ua, ok := v.(string); ok {
			return ua
		}
	}
	return ""
}
