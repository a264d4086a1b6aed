package migration

import (
	"fmt"

	"github.com/clinops/dashboard-gin/internal/schema"
	"github.com/clinops/dashboard-gin/internal/structure"
)

// RegisterBuiltinMigrations 注册内置 schema 版本之间的迁移
func RegisterBuiltinMigrations(e *Engine) {
	e.RegisterMigration(schema.Version100, schema.Version110, []*Step{
		{
			Name: "introduce-data-mappings",
			Up: func(doc *structure.Value) error {
				if _, ok := doc.Get("data_mappings"); !ok {
					doc.Set("data_mappings", structure.NewObject())
				}
				return nil
			},
			Down: func(doc *structure.Value) error {
				doc.Delete("data_mappings")
				return nil
			},
		},
		{
			Name: "init-widget-data-requirements",
			Up: func(doc *structure.Value) error {
				forEachWidget(doc, func(widget *structure.Value) {
					if _, ok := widget.Get("data_requirements"); !ok {
						widget.Set("data_requirements", structure.NewObject())
					}
				})
				return nil
			},
			Down: func(doc *structure.Value) error {
				forEachWidget(doc, func(widget *structure.Value) {
					widget.Delete("data_requirements")
				})
				return nil
			},
		},
	})

	e.RegisterMigration(schema.Version110, schema.Version200, []*Step{
		{
			Name:     "grid-to-responsive-grid",
			Breaking: true,
			Up: func(doc *structure.Value) error {
				var upErr error
				forEachLayout(doc, func(layout *structure.Value) {
					layoutType, _ := layout.Get("type")
					if layoutType == nil {
						return
					}
					if t, ok := layoutType.AsString(); !ok || t != "grid" {
						return
					}
					columns, ok := layout.Get("columns")
					if !ok {
						upErr = fmt.Errorf("grid layout has no columns")
						return
					}
					lg := structure.NewObject()
					lg.Set("columns", columns.Clone())
					breakpoints := structure.NewObject()
					breakpoints.Set("lg", lg)
					layout.Set("type", structure.Scalar("responsive_grid"))
					layout.Set("breakpoints", breakpoints)
					layout.Delete("columns")
				})
				return upErr
			},
			Down: func(doc *structure.Value) error {
				forEachLayout(doc, func(layout *structure.Value) {
					layoutType, _ := layout.Get("type")
					if layoutType == nil {
						return
					}
					if t, ok := layoutType.AsString(); !ok || t != "responsive_grid" {
						return
					}
					if columns, ok := layout.GetPath("breakpoints", "lg", "columns"); ok {
						layout.Set("columns", columns.Clone())
					}
					layout.Set("type", structure.Scalar("grid"))
					layout.Delete("breakpoints")
				})
				return nil
			},
		},
	})
}

// forEachLayout 遍历全部仪表盘布局
func forEachLayout(doc *structure.Value, fn func(layout *structure.Value)) {
	forEachDashboard(doc, func(dashboard *structure.Value) {
		if layout, ok := dashboard.Get("layout"); ok && layout.Kind() == structure.KindObject {
			fn(layout)
		}
	})
}

// forEachWidget 遍历全部仪表盘组件
func forEachWidget(doc *structure.Value, fn func(widget *structure.Value)) {
	forEachDashboard(doc, func(dashboard *structure.Value) {
		widgets, ok := dashboard.Get("widgets")
		if !ok || widgets.Kind() != structure.KindArray {
			return
		}
		for _, widget := range widgets.Items() {
			if widget.Kind() == structure.KindObject {
				fn(widget)
			}
		}
	})
}

// forEachDashboard 遍历菜单树上的全部仪表盘
func forEachDashboard(doc *structure.Value, fn func(dashboard *structure.Value)) {
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
			if dashboard, ok := item.Get("dashboard"); ok && dashboard.Kind() == structure.KindObject {
				fn(dashboard)
			}
			if children, ok := item.Get("children"); ok && children.Kind() == structure.KindArray {
				walk(children)
			}
		}
	}
	walk(items)
}
