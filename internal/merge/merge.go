package merge

import (
	"fmt"

	"github.com/clinops/dashboard-gin/internal/structure"
)

// Policy 合并冲突处理策略
type Policy string

const (
	PolicyKeepFirst   Policy = "KEEP_FIRST"
	PolicyKeepLast    Policy = "KEEP_LAST"
	PolicyMergeArrays Policy = "MERGE_ARRAYS"
	PolicyThrowError  Policy = "THROW_ERROR"
)

// Conflict 一次值冲突的记录
// 无论冲突被哪种策略消解,都会写入冲突报告供调用方检查
type Conflict struct {
	Path   string   `json:"path"`
	Values []string `json:"values"` // 冲突双方的 JSON 片段
	Policy Policy   `json:"policy"`
}

// ConflictError THROW_ERROR 策略下抛出的合并冲突
type ConflictError struct {
	Path   string
	Values []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge conflict at %q", e.Path)
}

// Merger 模板结构深合并器
// 每次调用的冲突列表都是独立的局部状态,可跨模板并发使用
type Merger struct{}

// NewMerger 创建合并器
func NewMerger() *Merger {
	return &Merger{}
}

// MergeExtends EXTENDS 语义: 子级条目覆盖匹配的父级条目,
// 未匹配的父级条目保留,子级独有的条目追加
func (m *Merger) MergeExtends(parent, child *structure.Value) *structure.Value {
	return mergeExtends(parent, child)
}

func mergeExtends(parent, child *structure.Value) *structure.Value {
	if parent == nil {
		return child.Clone()
	}
	if child == nil {
		return parent.Clone()
	}
	if parent.Kind() == structure.KindObject && child.Kind() == structure.KindObject {
		out := parent.Clone()
		for _, key := range child.Keys() {
			cv, _ := child.Get(key)
			if pv, ok := out.Get(key); ok {
				out.Set(key, mergeExtends(pv, cv))
			} else {
				out.Set(key, cv.Clone())
			}
		}
		return out
	}
	if parent.Kind() == structure.KindArray && child.Kind() == structure.KindArray {
		return mergeArrayExtends(parent, child)
	}
	// 标量或类型不一致: 子级覆盖
	return child.Clone()
}

// mergeArrayExtends 数组按身份键配对: 父级顺序优先,匹配项递归合并,
// 子级未匹配项按原顺序追加; 标量数组因内容哈希匹配自然得到并集
func mergeArrayExtends(parent, child *structure.Value) *structure.Value {
	childByKey := make(map[string]*structure.Value)
	for _, item := range child.Items() {
		childByKey[identityKey(item)] = item
	}

	out := structure.NewArray()
	matched := make(map[string]bool)
	for _, item := range parent.Items() {
		key := identityKey(item)
		if cv, ok := childByKey[key]; ok {
			out.Append(mergeExtends(item, cv))
			matched[key] = true
		} else {
			out.Append(item.Clone())
		}
	}
	for _, item := range child.Items() {
		if !matched[identityKey(item)] {
			out.Append(item.Clone())
		}
	}
	return out
}

// MergeIncludes INCLUDES 语义: 子级是基底,父级条目只在子级没有
// 同身份键条目的位置补入,绝不覆盖子级已有的内容
func (m *Merger) MergeIncludes(parent, child *structure.Value) *structure.Value {
	return mergeIncludes(parent, child)
}

func mergeIncludes(parent, child *structure.Value) *structure.Value {
	if child == nil {
		return parent.Clone()
	}
	if parent == nil {
		return child.Clone()
	}
	if parent.Kind() == structure.KindObject && child.Kind() == structure.KindObject {
		out := child.Clone()
		for _, key := range parent.Keys() {
			pv, _ := parent.Get(key)
			if cv, ok := out.Get(key); ok {
				out.Set(key, mergeIncludes(pv, cv))
			} else {
				out.Set(key, pv.Clone())
			}
		}
		return out
	}
	if parent.Kind() == structure.KindArray && child.Kind() == structure.KindArray {
		return mergeArrayIncludes(parent, child)
	}
	// 冲突时保留子级
	return child.Clone()
}

func mergeArrayIncludes(parent, child *structure.Value) *structure.Value {
	parentByKey := make(map[string]*structure.Value)
	for _, item := range parent.Items() {
		parentByKey[identityKey(item)] = item
	}

	out := structure.NewArray()
	matched := make(map[string]bool)
	for _, item := range child.Items() {
		key := identityKey(item)
		if pv, ok := parentByKey[key]; ok {
			out.Append(mergeIncludes(pv, item))
			matched[key] = true
		} else {
			out.Append(item.Clone())
		}
	}
	for _, item := range parent.Items() {
		if !matched[identityKey(item)] {
			out.Append(item.Clone())
		}
	}
	return out
}

// Merge 广义 N 路合并: 按顺序把文档折叠到累积结果上,
// 值冲突按默认策略或路径级覆盖策略消解,所有非平凡冲突进入报告
func (m *Merger) Merge(docs []*structure.Value, policy Policy, overrides map[string]Policy) (*structure.Value, []Conflict, error) {
	if len(docs) == 0 {
		return structure.NewObject(), nil, nil
	}

	acc := docs[0].Clone()
	var conflicts []Conflict
	for _, doc := range docs[1:] {
		merged, err := mergeWith(acc, doc, "", policy, overrides, &conflicts)
		if err != nil {
			return nil, conflicts, err
		}
		acc = merged
	}
	return acc, conflicts, nil
}

func mergeWith(a, b *structure.Value, path string, policy Policy, overrides map[string]Policy, conflicts *[]Conflict) (*structure.Value, error) {
	if a == nil {
		return b.Clone(), nil
	}
	if b == nil {
		return a.Clone(), nil
	}

	if a.Kind() == structure.KindObject && b.Kind() == structure.KindObject {
		out := a.Clone()
		for _, key := range b.Keys() {
			bv, _ := b.Get(key)
			childPath := joinPath(path, key)
			if av, ok := out.Get(key); ok {
				merged, err := mergeWith(av, bv, childPath, policy, overrides, conflicts)
				if err != nil {
					return nil, err
				}
				out.Set(key, merged)
			} else {
				out.Set(key, bv.Clone())
			}
		}
		return out, nil
	}

	if a.Kind() == structure.KindArray && b.Kind() == structure.KindArray {
		return mergeArrayWith(a, b, path, policy, overrides, conflicts)
	}

	// 值相等不算冲突
	if a.Equal(b) {
		return a.Clone(), nil
	}

	eff := policy
	if override, ok := overrides[path]; ok {
		eff = override
	}
	*conflicts = append(*conflicts, Conflict{
		Path:   path,
		Values: []string{encodeForReport(a), encodeForReport(b)},
		Policy: eff,
	})

	switch eff {
	case PolicyKeepFirst:
		return a.Clone(), nil
	case PolicyThrowError:
		return nil, &ConflictError{Path: path, Values: []string{encodeForReport(a), encodeForReport(b)}}
	default:
		// KEEP_LAST 与 MERGE_ARRAYS 对标量冲突都取后者
		return b.Clone(), nil
	}
}

func mergeArrayWith(a, b *structure.Value, path string, policy Policy, overrides map[string]Policy, conflicts *[]Conflict) (*structure.Value, error) {
	bByKey := make(map[string]*structure.Value)
	for _, item := range b.Items() {
		bByKey[identityKey(item)] = item
	}

	out := structure.NewArray()
	matched := make(map[string]bool)
	for _, item := range a.Items() {
		key := identityKey(item)
		if bv, ok := bByKey[key]; ok {
			merged, err := mergeWith(item, bv, fmt.Sprintf("%s[%s]", path, key), policy, overrides, conflicts)
			if err != nil {
				return nil, err
			}
			out.Append(merged)
			matched[key] = true
		} else {
			out.Append(item.Clone())
		}
	}
	for _, item := range b.Items() {
		if !matched[identityKey(item)] {
			out.Append(item.Clone())
		}
	}
	return out, nil
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func encodeForReport(v *structure.Value) string {
	data, err := v.Encode()
	if err != nil {
		return ""
	}
	return string(data)
}
