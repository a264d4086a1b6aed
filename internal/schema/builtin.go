package schema

import (
	"github.com/clinops/dashboard-gin/internal/structure"
	"github.com/clinops/dashboard-gin/internal/validation"
)

// 内置 schema 版本号
const (
	Version100 = "1.0.0"
	Version110 = "1.1.0"
	Version200 = "2.0.0"
)

// BuiltinRegistry 内置的三个 schema 版本
// 1.0.0: 固定 grid 布局
// 1.1.0: 新增顶层 data_mappings
// 2.0.0: responsive_grid 布局,按断点给列数
func BuiltinRegistry(validator *validation.Validator) *Registry {
	r := NewRegistry(validator)

	r.Register(&Version{
		Version: Version100,
		Schema: &validation.Schema{
			RequiredSections: []string{"menu"},
			LayoutTypes:      []string{"grid"},
			WidgetFields:     []string{"widget_code", "position"},
		},
		Changes:     []string{"initial schema: menu tree with grid dashboards"},
		Fingerprint: hasSection("menu"),
	})

	r.Register(&Version{
		Version: Version110,
		Schema: &validation.Schema{
			RequiredSections: []string{"menu", "data_mappings"},
			LayoutTypes:      []string{"grid"},
			WidgetFields:     []string{"widget_code", "position"},
		},
		Changes:     []string{"top-level data_mappings section", "widget data_requirements"},
		Fingerprint: hasSection("data_mappings"),
	})

	r.Register(&Version{
		Version: Version200,
		Schema: &validation.Schema{
			RequiredSections: []string{"menu", "data_mappings"},
			LayoutTypes:      []string{"responsive_grid"},
			WidgetFields:     []string{"widget_code", "position"},
		},
		Changes:     []string{"grid layout replaced by responsive_grid with per-breakpoint columns"},
		Fingerprint: usesLayoutType("responsive_grid"),
	})

	return r
}

func hasSection(name string) func(doc *structure.Value) bool {
	return func(doc *structure.Value) bool {
		if doc == nil {
			return false
		}
		_, ok := doc.Get(name)
		return ok
	}
}

func usesLayoutType(name string) func(doc *structure.Value) bool {
	return func(doc *structure.Value) bool {
		found := false
		walkLayouts(doc, func(layoutType string) {
			if layoutType == name {
				found = true
			}
		})
		return found
	}
}

// walkLayouts 遍历菜单树上全部仪表盘的布局类型
func walkLayouts(doc *structure.Value, fn func(layoutType string)) {
	if doc == nil {
		return
	}
	items, ok := doc.GetPath("menu", "items")
	if !ok || items.Kind() != structure.KindArray {
		return
	}
	var walk func(items *structure.Value)
	walk = func(items *structure.Value) {
		for _, item := range items.Items() {
			if item.Kind() != structure.KindObject {
				continue
			}
			if layoutType, ok := item.GetPath("dashboard", "layout", "type"); ok {
				if t, isStr := layoutType.AsString(); isStr {
					fn(t)
				}
			}
			if children, ok := item.Get("children"); ok && children.Kind() == structure.KindArray {
				walk(children)
			}
		}
	}
	walk(items)
}
