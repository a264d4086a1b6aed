package merge

import (
	"testing"

	"github.com/clinops/dashboard-gin/internal/structure"
	"github.com/clinops/dashboard-gin/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, raw string) *structure.Value {
	t.Helper()
	doc, err := structure.Decode([]byte(raw))
	require.NoError(t, err)
	return doc
}

// TestMergeExtendsWidgetOverride 测试 EXTENDS 子级组件覆盖父级同 id 组件
func TestMergeExtendsWidgetOverride(t *testing.T) {
	parent := mustDecode(t, `{
		"menu": {"items": [
			{"id": "overview", "dashboard": {"widgets": [
				{"id": "w1", "position": {"x": 0, "y": 0, "w": 3, "h": 2}}
			]}}
		]}
	}`)
	child := mustDecode(t, `{
		"menu": {"items": [
			{"id": "overview", "dashboard": {"widgets": [
				{"id": "w1", "position": {"x": 0, "y": 0, "w": 6, "h": 2}}
			]}}
		]}
	}`)

	merged := NewMerger().MergeExtends(parent, child)

	items, ok := merged.GetPath("menu", "items")
	require.True(t, ok)
	widgets, ok := items.Item(0).GetPath("dashboard", "widgets")
	require.True(t, ok)
	require.Equal(t, 1, widgets.Len())

	pos, ok := widgets.Item(0).Get("position")
	require.True(t, ok)
	w, _ := fieldNumber(t, pos, "w")
	h, _ := fieldNumber(t, pos, "h")
	assert.Equal(t, float64(6), w)
	assert.Equal(t, float64(2), h)
}

func fieldNumber(t *testing.T, obj *structure.Value, key string) (float64, bool) {
	t.Helper()
	val, ok := obj.Get(key)
	require.True(t, ok)
	return val.AsNumber()
}

// TestMergeExtendsPreservesUnmatchedParent 测试未匹配的父级条目保留
func TestMergeExtendsPreservesUnmatchedParent(t *testing.T) {
	parent := mustDecode(t, `{"menu": {"items": [{"id": "overview", "label": "Overview"}, {"id": "safety", "label": "Safety"}]}}`)
	child := mustDecode(t, `{"menu": {"items": [{"id": "overview", "label": "Study Overview"}, {"id": "enrollment", "label": "Enrollment"}]}}`)

	merged := NewMerger().MergeExtends(parent, child)
	items, ok := merged.GetPath("menu", "items")
	require.True(t, ok)
	require.Equal(t, 3, items.Len())

	labels := make(map[string]string)
	for _, item := range items.Items() {
		id, _ := mustField(t, item, "id").AsString()
		label, _ := mustField(t, item, "label").AsString()
		labels[id] = label
	}
	assert.Equal(t, "Study Overview", labels["overview"])
	assert.Equal(t, "Safety", labels["safety"])
	assert.Equal(t, "Enrollment", labels["enrollment"])
}

func mustField(t *testing.T, obj *structure.Value, key string) *structure.Value {
	t.Helper()
	val, ok := obj.Get(key)
	require.True(t, ok)
	return val
}

// TestMergeExtendsIdempotent 测试同一子级重复套用结果不变
func TestMergeExtendsIdempotent(t *testing.T) {
	parent := mustDecode(t, `{"menu": {"items": [{"id": "a", "label": "A"}, {"id": "b", "label": "B"}]}}`)
	child := mustDecode(t, `{"menu": {"items": [{"id": "a", "label": "A2"}]}}`)

	m := NewMerger()
	once := m.MergeExtends(parent, child)
	twice := m.MergeExtends(once, child)

	assert.True(t, once.Equal(twice))
}

// TestMergeExtendsUnionsDataMappings 测试 data_mappings 取并集
func TestMergeExtendsUnionsDataMappings(t *testing.T) {
	parent := mustDecode(t, `{"data_mappings": {"required_datasets": ["dm", "ae"], "field_mappings": {"dm": ["USUBJID", "AGE"]}}}`)
	child := mustDecode(t, `{"data_mappings": {"required_datasets": ["ae", "lb"], "field_mappings": {"dm": ["SEX"], "lb": ["LBTEST"]}}}`)

	merged := NewMerger().MergeExtends(parent, child)

	datasets, ok := merged.GetPath("data_mappings", "required_datasets")
	require.True(t, ok)
	assert.Equal(t, 3, datasets.Len(), "required_datasets should be a union")

	dmFields, ok := merged.GetPath("data_mappings", "field_mappings", "dm")
	require.True(t, ok)
	assert.Equal(t, 3, dmFields.Len())

	lbFields, ok := merged.GetPath("data_mappings", "field_mappings", "lb")
	require.True(t, ok)
	assert.Equal(t, 1, lbFields.Len())
}

// TestMergeIncludesNeverOverridesChild 测试 INCLUDES 绝不覆盖子级
func TestMergeIncludesNeverOverridesChild(t *testing.T) {
	parent := mustDecode(t, `{"title": "Parent Title", "theme": "dark"}`)
	child := mustDecode(t, `{"title": "Child Title"}`)

	merged := NewMerger().MergeIncludes(parent, child)

	for _, key := range child.Keys() {
		cv, _ := child.Get(key)
		mv, ok := merged.Get(key)
		require.True(t, ok)
		assert.True(t, cv.Equal(mv), "child key %q must survive unchanged", key)
	}
	theme, ok := merged.Get("theme")
	require.True(t, ok)
	s, _ := theme.AsString()
	assert.Equal(t, "dark", s)
}

// TestMergeIncludesAppendsParentItems 测试 INCLUDES 补入父级独有条目
func TestMergeIncludesAppendsParentItems(t *testing.T) {
	parent := mustDecode(t, `{"menu": {"items": [{"id": "overview", "label": "Parent"}, {"id": "safety", "label": "Safety"}]}}`)
	child := mustDecode(t, `{"menu": {"items": [{"id": "overview", "label": "Child"}]}}`)

	merged := NewMerger().MergeIncludes(parent, child)
	items, ok := merged.GetPath("menu", "items")
	require.True(t, ok)
	require.Equal(t, 2, items.Len())

	// 子级条目在前且标签未被父级覆盖
	label, _ := mustField(t, items.Item(0), "label").AsString()
	assert.Equal(t, "Child", label)
	id, _ := mustField(t, items.Item(1), "id").AsString()
	assert.Equal(t, "safety", id)
}

// TestGeneralMergeKeepLast 测试 KEEP_LAST 策略与冲突报告
func TestGeneralMergeKeepLast(t *testing.T) {
	a := mustDecode(t, `{"title": "A", "shared": 1}`)
	b := mustDecode(t, `{"title": "B", "extra": true}`)

	merged, conflicts, err := NewMerger().Merge([]*structure.Value{a, b}, PolicyKeepLast, nil)
	require.NoError(t, err)

	title, _ := mustField(t, merged, "title").AsString()
	assert.Equal(t, "B", title)

	require.Len(t, conflicts, 1)
	assert.Equal(t, "title", conflicts[0].Path)
	assert.Equal(t, PolicyKeepLast, conflicts[0].Policy)
	assert.Equal(t, []string{`"A"`, `"B"`}, conflicts[0].Values)
}

// TestGeneralMergeKeepFirst 测试 KEEP_FIRST 策略保留先到的值
func TestGeneralMergeKeepFirst(t *testing.T) {
	a := mustDecode(t, `{"title": "A"}`)
	b := mustDecode(t, `{"title": "B"}`)

	merged, conflicts, err := NewMerger().Merge([]*structure.Value{a, b}, PolicyKeepFirst, nil)
	require.NoError(t, err)

	title, _ := mustField(t, merged, "title").AsString()
	assert.Equal(t, "A", title)
	assert.Len(t, conflicts, 1, "resolved conflicts still go into the report")
}

// TestGeneralMergeThrowError 测试 THROW_ERROR 策略抛出冲突错误
func TestGeneralMergeThrowError(t *testing.T) {
	a := mustDecode(t, `{"title": "A"}`)
	b := mustDecode(t, `{"title": "B"}`)

	_, conflicts, err := NewMerger().Merge([]*structure.Value{a, b}, PolicyThrowError, nil)
	require.Error(t, err)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "title", conflictErr.Path)
	assert.Len(t, conflicts, 1)
}

// TestGeneralMergePathOverride 测试路径级策略覆盖默认策略
func TestGeneralMergePathOverride(t *testing.T) {
	a := mustDecode(t, `{"title": "A", "layout": {"type": "grid"}}`)
	b := mustDecode(t, `{"title": "B", "layout": {"type": "flow"}}`)

	overrides := map[string]Policy{"layout.type": PolicyKeepFirst}
	merged, conflicts, err := NewMerger().Merge([]*structure.Value{a, b}, PolicyKeepLast, overrides)
	require.NoError(t, err)

	title, _ := mustField(t, merged, "title").AsString()
	assert.Equal(t, "B", title)
	layoutType, ok := merged.GetPath("layout", "type")
	require.True(t, ok)
	s, _ := layoutType.AsString()
	assert.Equal(t, "grid", s)
	assert.Len(t, conflicts, 2)
}

// TestGeneralMergeEqualValuesNoConflict 测试相等的值不记录冲突
func TestGeneralMergeEqualValuesNoConflict(t *testing.T) {
	a := mustDecode(t, `{"title": "Same"}`)
	b := mustDecode(t, `{"title": "Same"}`)

	_, conflicts, err := NewMerger().Merge([]*structure.Value{a, b}, PolicyThrowError, nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

// TestMergeValidInputsStaysValid 测试合并两份合法结构不引入新的 ERROR 问题
func TestMergeValidInputsStaysValid(t *testing.T) {
	a := mustDecode(t, `{"menu": {"items": [
		{"id": "overview", "type": "dashboard", "label": "Overview", "dashboard": {
			"layout": {"type": "grid", "columns": 12},
			"widgets": [{"id": "w1", "widget_code": "kpi", "position": {"x": 0, "y": 0, "w": 3, "h": 2}}]
		}}
	]}}`)
	b := mustDecode(t, `{"menu": {"items": [
		{"id": "safety", "type": "dashboard", "label": "Safety", "dashboard": {
			"layout": {"type": "grid", "columns": 12},
			"widgets": [{"id": "w2", "widget_code": "trend", "position": {"x": 3, "y": 0, "w": 3, "h": 2}}]
		}}
	]}}`)

	v := validation.NewValidator(nil)
	require.True(t, v.ValidateStructure(a).IsValid)
	require.True(t, v.ValidateStructure(b).IsValid)

	merged, _, err := NewMerger().Merge([]*structure.Value{a, b}, PolicyMergeArrays, nil)
	require.NoError(t, err)

	result := v.ValidateStructure(merged)
	assert.True(t, result.IsValid)
	for _, issue := range result.Issues {
		assert.NotEqual(t, validation.SeverityError, issue.Severity, "unexpected %s at %s", issue.Code, issue.Path)
	}
}

// TestIdentityKeyFallsBackToPosition 测试无 id 组件按坐标配对
func TestIdentityKeyFallsBackToPosition(t *testing.T) {
	parent := mustDecode(t, `{"widgets": [{"widget_code": "kpi", "position": {"x": 0, "y": 0, "w": 3, "h": 2}}]}`)
	child := mustDecode(t, `{"widgets": [{"widget_code": "trend", "position": {"x": 0, "y": 0, "w": 3, "h": 2}}]}`)

	merged := NewMerger().MergeExtends(parent, child)
	widgets, ok := merged.Get("widgets")
	require.True(t, ok)
	// 同坐标被视为同一元素,子级覆盖 —— 这是保留的已知限制
	require.Equal(t, 1, widgets.Len())
	code, _ := mustField(t, widgets.Item(0), "widget_code").AsString()
	assert.Equal(t, "trend", code)
}
