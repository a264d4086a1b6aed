package structure

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Kind 文档节点类型标签
type Kind int

const (
	KindScalar Kind = iota // 标量: nil/bool/float64/string
	KindObject             // 对象: 保留键顺序的映射
	KindArray              // 数组
)

// Value 模板结构文档的节点
// 用显式的类型标签代替运行时反射,合并/校验逻辑按标签分发
type Value struct {
	kind   Kind
	scalar interface{}
	keys   []string
	fields map[string]*Value
	items  []*Value
}

// Scalar 创建标量节点
func Scalar(v interface{}) *Value {
	return &Value{kind: KindScalar, scalar: v}
}

// NewObject 创建空对象节点
func NewObject() *Value {
	return &Value{kind: KindObject, fields: make(map[string]*Value)}
}

// NewArray 创建空数组节点
func NewArray() *Value {
	return &Value{kind: KindArray}
}

// Kind 返回节点类型
func (v *Value) Kind() Kind {
	return v.kind
}

// ScalarValue 返回标量值(非标量节点返回 nil)
func (v *Value) ScalarValue() interface{} {
	if v.kind != KindScalar {
		return nil
	}
	return v.scalar
}

// AsString 取字符串标量
func (v *Value) AsString() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	s, ok := v.scalar.(string)
	return s, ok
}

// AsNumber 取数值标量
func (v *Value) AsNumber() (float64, bool) {
	if v.kind != KindScalar {
		return 0, false
	}
	switch n := v.scalar.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// AsBool 取布尔标量
func (v *Value) AsBool() (bool, bool) {
	if v.kind != KindScalar {
		return false, false
	}
	b, ok := v.scalar.(bool)
	return b, ok
}

// Get 按键读取对象字段
func (v *Value) Get(key string) (*Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	val, ok := v.fields[key]
	return val, ok
}

// Set 写入对象字段,新键追加到键顺序末尾,已有键保持原位置
func (v *Value) Set(key string, val *Value) {
	if v.kind != KindObject {
		return
	}
	if _, exists := v.fields[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.fields[key] = val
}

// Delete 删除对象字段
func (v *Value) Delete(key string) {
	if v.kind != KindObject {
		return
	}
	if _, exists := v.fields[key]; !exists {
		return
	}
	delete(v.fields, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
}

// Keys 返回对象键的有序副本
func (v *Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len 返回对象字段数或数组元素数
func (v *Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.keys)
	case KindArray:
		return len(v.items)
	}
	return 0
}

// Items 返回数组元素切片(共享底层元素)
func (v *Value) Items() []*Value {
	if v.kind != KindArray {
		return nil
	}
	out := make([]*Value, len(v.items))
	copy(out, v.items)
	return out
}

// Item 按下标取数组元素
func (v *Value) Item(i int) *Value {
	if v.kind != KindArray || i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Append 追加数组元素
func (v *Value) Append(val *Value) {
	if v.kind != KindArray {
		return
	}
	v.items = append(v.items, val)
}

// GetPath 按路径逐级读取嵌套对象字段
func (v *Value) GetPath(path ...string) (*Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Get(key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// SetPath 按路径写入,缺失的中间对象自动创建
func (v *Value) SetPath(val *Value, path ...string) {
	if len(path) == 0 || v.kind != KindObject {
		return
	}
	cur := v
	for _, key := range path[:len(path)-1] {
		next, ok := cur.Get(key)
		if !ok || next.kind != KindObject {
			next = NewObject()
			cur.Set(key, next)
		}
		cur = next
	}
	cur.Set(path[len(path)-1], val)
}

// Clone 深拷贝
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	switch v.kind {
	case KindObject:
		out := NewObject()
		for _, key := range v.keys {
			out.Set(key, v.fields[key].Clone())
		}
		return out
	case KindArray:
		out := NewArray()
		for _, item := range v.items {
			out.Append(item.Clone())
		}
		return out
	default:
		return Scalar(v.scalar)
	}
}

// Equal 深度内容相等,对象键顺序不参与比较
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindObject:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for key, val := range v.fields {
			other, ok := o.fields[key]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i, item := range v.items {
			if !item.Equal(o.items[i]) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(v.scalar, o.scalar)
	}
}

func scalarEqual(a, b interface{}) bool {
	an, aok := numeric(a)
	bn, bok := numeric(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Hash 内容哈希,对象键排序后计算,与键顺序无关
func (v *Value) Hash() string {
	sum := sha256.Sum256([]byte(v.canonical()))
	return hex.EncodeToString(sum[:])
}

// canonical 规范化表示,用于内容哈希
func (v *Value) canonical() string {
	switch v.kind {
	case KindObject:
		keys := v.Keys()
		sort.Strings(keys)
		out := "{"
		for i, key := range keys {
			if i > 0 {
				out += ","
			}
			out += encodeJSONString(key) + ":" + v.fields[key].canonical()
		}
		return out + "}"
	case KindArray:
		out := "["
		for i, item := range v.items {
			if i > 0 {
				out += ","
			}
			out += item.canonical()
		}
		return out + "]"
	default:
		return encodeScalar(v.scalar)
	}
}
