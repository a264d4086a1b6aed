package validation

import (
	"fmt"

	"github.com/clinops/dashboard-gin/internal/structure"
)

// Schema 结构 schema 描述符,由版本注册表按版本提供
type Schema struct {
	RequiredSections []string `yaml:"required_sections"` // 顶层必需键
	LayoutTypes      []string `yaml:"layout_types"`      // 允许出现的布局类型
	WidgetFields     []string `yaml:"widget_fields"`     // 组件必需字段
}

// ValidateConformance 按 schema 描述符检查结构符合性
// 结构本身的通用校验不在这里重复,调用方按需叠加 ValidateStructure
func (v *Validator) ValidateConformance(doc *structure.Value, s *Schema) Result {
	var issues []Issue
	if doc == nil || doc.Kind() != structure.KindObject {
		return NewResult([]Issue{{SeverityError, CodeSchemaMissingSection, "document must be an object", ""}})
	}

	for _, section := range s.RequiredSections {
		if _, ok := doc.Get(section); !ok {
			issues = append(issues, Issue{SeverityError, CodeSchemaMissingSection, fmt.Sprintf("schema requires a %q section", section), section})
		}
	}

	allowed := make(map[string]bool, len(s.LayoutTypes))
	for _, t := range s.LayoutTypes {
		allowed[t] = true
	}

	walkDashboards(doc, func(dashboard *structure.Value, path string) {
		if len(s.LayoutTypes) > 0 {
			if layoutType, ok := dashboard.GetPath("layout", "type"); ok {
				if t, isStr := layoutType.AsString(); isStr && !allowed[t] {
					issues = append(issues, Issue{SeverityError, CodeSchemaUnsupportedLayout, fmt.Sprintf("layout type %q is not part of this schema version", t), path + ".layout.type"})
				}
			}
		}
		widgets, ok := dashboard.Get("widgets")
		if !ok || widgets.Kind() != structure.KindArray {
			return
		}
		for i, widget := range widgets.Items() {
			if widget.Kind() != structure.KindObject {
				continue
			}
			for _, field := range s.WidgetFields {
				if _, ok := widget.Get(field); !ok {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Code:     CodeSchemaMissingWidgetField,
						Message:  fmt.Sprintf("schema requires widget field %q", field),
						Path:     fmt.Sprintf("%s.widgets[%d].%s", path, i, field),
					})
				}
			}
		}
	})
	return NewResult(issues)
}

// walkDashboards 遍历菜单树上的全部仪表盘
func walkDashboards(doc *structure.Value, fn func(dashboard *structure.Value, path string)) {
	items, ok := doc.GetPath("menu", "items")
	if !ok || items.Kind() != structure.KindArray {
		return
	}
	walkItems(items, "menu.items", fn)
}

func walkItems(items *structure.Value, path string, fn func(dashboard *structure.Value, path string)) {
	for i, item := range items.Items() {
		if item.Kind() != structure.KindObject {
			continue
		}
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if dashboard, ok := item.Get("dashboard"); ok && dashboard.Kind() == structure.KindObject {
			fn(dashboard, itemPath+".dashboard")
		}
		if children, ok := item.Get("children"); ok && children.Kind() == structure.KindArray {
			walkItems(children, itemPath+".children", fn)
		}
	}
}
