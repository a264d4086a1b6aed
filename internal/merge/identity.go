package merge

import (
	"fmt"

	"github.com/clinops/dashboard-gin/internal/structure"
)

// identityKey 计算数组元素的匹配键
// 优先级: 显式 id 字段 -> 组件坐标 (x, y) -> 内容哈希
// 已知限制: 两个恰好共享同一坐标且都没有 id 的组件会被误判为同一元素,
// 这里保留该行为而不是加入额外的消歧规则
func identityKey(v *structure.Value) string {
	if v.Kind() == structure.KindObject {
		if id, ok := v.Get("id"); ok && id.Kind() == structure.KindScalar {
			return fmt.Sprintf("id:%v", id.ScalarValue())
		}
		if pos, ok := v.Get("position"); ok && pos.Kind() == structure.KindObject {
			x, xok := numberField(pos, "x")
			y, yok := numberField(pos, "y")
			if xok && yok {
				return fmt.Sprintf("pos:%g,%g", x, y)
			}
		}
	}
	return "hash:" + v.Hash()
}

func numberField(obj *structure.Value, key string) (float64, bool) {
	val, ok := obj.Get(key)
	if !ok {
		return 0, false
	}
	return val.AsNumber()
}
