package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecodePreservesKeyOrder 测试解析后对象键顺序与输入一致
func TestDecodePreservesKeyOrder(t *testing.T) {
	doc, err := Decode([]byte(`{"menu":{"items":[]},"data_mappings":{},"zeta":1,"alpha":2}`))
	require.NoError(t, err)

	assert.Equal(t, KindObject, doc.Kind())
	assert.Equal(t, []string{"menu", "data_mappings", "zeta", "alpha"}, doc.Keys())
}

// TestEncodeRoundTrip 测试序列化保持键顺序
func TestEncodeRoundTrip(t *testing.T) {
	raw := []byte(`{"b":1,"a":{"y":true,"x":null},"list":[1,"two",false]}`)
	doc, err := Decode(raw)
	require.NoError(t, err)

	out, err := doc.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))
	assert.Equal(t, string(raw), string(out), "key order should survive the round trip")
}

// TestDecodeRejectsTrailingContent 测试多余内容报错
func TestDecodeRejectsTrailingContent(t *testing.T) {
	_, err := Decode([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}

// TestSetKeepsExistingPosition 测试已有键覆盖后位置不变
func TestSetKeepsExistingPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("first", Scalar("a"))
	obj.Set("second", Scalar("b"))
	obj.Set("first", Scalar("c"))

	assert.Equal(t, []string{"first", "second"}, obj.Keys())
	val, ok := obj.Get("first")
	require.True(t, ok)
	s, _ := val.AsString()
	assert.Equal(t, "c", s)
}

// TestCloneIsIndependent 测试深拷贝与原文档互不影响
func TestCloneIsIndependent(t *testing.T) {
	doc, err := Decode([]byte(`{"menu":{"items":[{"id":"overview"}]}}`))
	require.NoError(t, err)

	clone := doc.Clone()
	items, ok := clone.GetPath("menu", "items")
	require.True(t, ok)
	items.Item(0).Set("label", Scalar("Overview"))

	original, ok := doc.GetPath("menu", "items")
	require.True(t, ok)
	_, hasLabel := original.Item(0).Get("label")
	assert.False(t, hasLabel)
	assert.False(t, doc.Equal(clone))
}

// TestEqualIgnoresKeyOrder 测试内容相等不受键顺序影响
func TestEqualIgnoresKeyOrder(t *testing.T) {
	a, err := Decode([]byte(`{"x":1,"y":2}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"y":2,"x":1}`))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())
}

// TestHashDiffersOnContent 测试内容不同哈希不同
func TestHashDiffersOnContent(t *testing.T) {
	a, err := Decode([]byte(`{"x":1}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"x":2}`))
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash(), b.Hash())
}

// TestSetPathCreatesIntermediates 测试路径写入自动创建中间对象
func TestSetPathCreatesIntermediates(t *testing.T) {
	doc := NewObject()
	doc.SetPath(Scalar(float64(12)), "layout", "breakpoints", "lg", "columns")

	val, ok := doc.GetPath("layout", "breakpoints", "lg", "columns")
	require.True(t, ok)
	n, _ := val.AsNumber()
	assert.Equal(t, float64(12), n)
}

// TestScalarAccessors 测试标量访问器
func TestScalarAccessors(t *testing.T) {
	s, ok := Scalar("grid").AsString()
	assert.True(t, ok)
	assert.Equal(t, "grid", s)

	n, ok := Scalar(float64(3)).AsNumber()
	assert.True(t, ok)
	assert.Equal(t, float64(3), n)

	b, ok := Scalar(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = NewObject().AsString()
	assert.False(t, ok)
}
