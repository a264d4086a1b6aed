package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// SanitizeString 清理字符串，移除或转义危险字符
func SanitizeString(input string) string {
	// 1. HTML 转义，防止 XSS
	sanitized := html.EscapeString(input)

	// 2. 移除控制字符（除了换行符和制表符）
	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// codePattern 模板/数据集代码: 小写字母开头,小写字母数字下划线连字符
var codePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateTemplateCode 验证模板代码格式
func ValidateTemplateCode(code string) error {
	if code == "" {
		return ErrEmptyCode
	}
	if len(code) > 64 {
		return ErrCodeTooLong
	}
	if !codePattern.MatchString(code) {
		return ErrInvalidCodeFormat
	}
	return nil
}

// ValidateTemplateName 验证模板名称
func ValidateTemplateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}
	if len(trimmed) > 255 {
		return ErrNameTooLong
	}
	if containsDangerousChars(trimmed) {
		return ErrDangerousChars
	}
	return nil
}

// ValidateTemplateID 验证模板 ID 格式
func ValidateTemplateID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	// 只允许字母、数字、连字符、下划线
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, id)
	if !matched {
		return ErrInvalidIDFormat
	}
	if len(id) > 64 {
		return ErrIDTooLong
	}
	return nil
}

// ValidateStudyID 验证研究 ID 格式
func ValidateStudyID(id string) error {
	return ValidateTemplateID(id) // 使用相同的验证规则
}

// containsDangerousChars 检查字符串是否包含危险字符
func containsDangerousChars(s string) bool {
	// 检查常见的 XSS 和 SQL 注入模式
	dangerousPatterns := []string{
		"<script",
		"</script>",
		"javascript:",
		"onerror=",
		"onload=",
		"';",
		"'; --",
		"DROP TABLE",
		"DELETE FROM",
		"INSERT INTO",
		"UPDATE SET",
		"UNION SELECT",
		"<iframe",
		"<img",
		"<svg",
	}

	lower := strings.ToLower(s)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}

	return false
}

// TrimAndValidate 清理并验证字符串
func TrimAndValidate(s string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", ErrEmptyString
	}
	if maxLen > 0 && len(trimmed) > maxLen {
		return "", ErrStringTooLong
	}
	return SanitizeString(trimmed), nil
}

// 错误定义
var (
	ErrEmptyName         = &ValidationError{Code: "EMPTY_NAME", Message: "name cannot be empty"}
	ErrNameTooLong       = &ValidationError{Code: "NAME_TOO_LONG", Message: "name exceeds maximum length"}
	ErrDangerousChars    = &ValidationError{Code: "DANGEROUS_CHARS", Message: "name contains dangerous characters"}
	ErrEmptyCode         = &ValidationError{Code: "EMPTY_CODE", Message: "code cannot be empty"}
	ErrCodeTooLong       = &ValidationError{Code: "CODE_TOO_LONG", Message: "code exceeds maximum length"}
	ErrInvalidCodeFormat = &ValidationError{Code: "INVALID_CODE_FORMAT", Message: "code must start with a lowercase letter and contain only lowercase letters, digits, underscores and hyphens"}
	ErrEmptyID           = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat   = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong         = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrEmptyString       = &ValidationError{Code: "EMPTY_STRING", Message: "string cannot be empty"}
	ErrStringTooLong     = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
