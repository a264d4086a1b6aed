package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateTemplateCode 测试模板代码格式校验
func TestValidateTemplateCode(t *testing.T) {
	assert.NoError(t, ValidateTemplateCode("safety"))
	assert.NoError(t, ValidateTemplateCode("safety-v2"))
	assert.NoError(t, ValidateTemplateCode("adverse_events"))

	assert.ErrorIs(t, ValidateTemplateCode(""), ErrEmptyCode)
	assert.ErrorIs(t, ValidateTemplateCode("Safety"), ErrInvalidCodeFormat)
	assert.ErrorIs(t, ValidateTemplateCode("1safety"), ErrInvalidCodeFormat)
	assert.ErrorIs(t, ValidateTemplateCode("safety dashboard"), ErrInvalidCodeFormat)
}

// TestValidateTemplateName 测试模板名称校验
func TestValidateTemplateName(t *testing.T) {
	assert.NoError(t, ValidateTemplateName("Safety Dashboard"))
	assert.ErrorIs(t, ValidateTemplateName("   "), ErrEmptyName)
	assert.ErrorIs(t, ValidateTemplateName("<script>alert(1)</script>"), ErrDangerousChars)
	assert.ErrorIs(t, ValidateTemplateName("x'; DROP TABLE templates"), ErrDangerousChars)
}

// TestValidateTemplateID 测试 ID 格式校验
func TestValidateTemplateID(t *testing.T) {
	assert.NoError(t, ValidateTemplateID("tpl-123_abc"))
	assert.ErrorIs(t, ValidateTemplateID(""), ErrEmptyID)
	assert.ErrorIs(t, ValidateTemplateID("tpl/123"), ErrInvalidIDFormat)
}

// TestValidateSortField 测试排序字段白名单
func TestValidateSortField(t *testing.T) {
	assert.NoError(t, ValidateSortField("created_at"))
	assert.NoError(t, ValidateSortField("code"))
	assert.Error(t, ValidateSortField(""))
	assert.Error(t, ValidateSortField("structure"))
	assert.Error(t, ValidateSortField("name; DROP TABLE templates"))
}

// TestSanitizeSortOrder 测试排序方向清理
func TestSanitizeSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", SanitizeSortOrder(" asc "))
	assert.Equal(t, "DESC", SanitizeSortOrder("desc"))
	assert.Equal(t, "DESC", SanitizeSortOrder("sideways"))
}

// TestEncryptRoundTrip 测试加解密往返
func TestEncryptRoundTrip(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"

	encrypted, err := Encrypt("sensitive template payload", key)
	require.NoError(t, err)
	assert.NotEqual(t, "sensitive template payload", encrypted)

	decrypted, err := Decrypt(encrypted, key)
	require.NoError(t, err)
	assert.Equal(t, "sensitive template payload", decrypted)
}

// TestEncryptBytesWrongKey 测试错误密钥解密失败
func TestEncryptBytesWrongKey(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	other := "fedcba9876543210fedcba9876543210"

	ciphertext, err := EncryptBytes([]byte("payload"), key)
	require.NoError(t, err)

	_, err = DecryptBytes(ciphertext, other)
	assert.Error(t, err)

	_, err = EncryptBytes([]byte("payload"), "short-key")
	assert.Error(t, err)
}

// TestTrimAndValidate 测试清理并校验
func TestTrimAndValidate(t *testing.T) {
	out, err := TrimAndValidate("  hello  ", 10)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = TrimAndValidate("   ", 10)
	assert.ErrorIs(t, err, ErrEmptyString)

	_, err = TrimAndValidate("toolongvalue", 5)
	assert.ErrorIs(t, err, ErrStringTooLong)
}
