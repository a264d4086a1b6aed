package structure

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Decode 解析 JSON 文档,对象键顺序按输入保留
func Decode(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	// 确认没有多余内容
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected trailing content in document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // 消费 '}'
				return nil, err
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Append(item)
			}
			if _, err := dec.Token(); err != nil { // 消费 ']'
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		// string/float64/bool/nil
		return Scalar(tok), nil
	}
}

// Encode 序列化为 JSON,对象键按记录的顺序输出
func (v *Value) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.appendJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) appendJSON(buf *bytes.Buffer) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch v.kind {
	case KindObject:
		buf.WriteByte('{')
		for i, key := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(encodeJSONString(key))
			buf.WriteByte(':')
			if err := v.fields[key].appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.appendJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		buf.WriteString(encodeScalar(v.scalar))
		return nil
	}
}

// MarshalJSON 实现 json.Marshaler
func (v *Value) MarshalJSON() ([]byte, error) {
	return v.Encode()
}

// UnmarshalJSON 实现 json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Decode(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func encodeJSONString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func encodeScalar(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
