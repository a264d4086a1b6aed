package validation

import (
	"fmt"

	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/structure"
)

// 菜单项允许的类型标签
var menuItemTypes = map[string]bool{
	"dashboard": true,
	"group":     true,
	"link":      true,
}

// Validator 结构校验器: 无状态规则引擎,按调用产出问题列表
// 校验从不抛错,失败表现为结果中的 ERROR 问题
type Validator struct {
	catalog DatasetCatalog // 可为 nil,此时跳过数据集交叉检查
}

// NewValidator 创建校验器
func NewValidator(catalog DatasetCatalog) *Validator {
	return &Validator{catalog: catalog}
}

// ValidateTemplate 校验模板元数据与结构
func (v *Validator) ValidateTemplate(tm *model.TemplateModel) Result {
	var issues []Issue
	issues = append(issues, v.metadataIssues(tm)...)

	doc, err := structure.Decode(tm.Structure)
	if err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeMissingMenu,
			Message:  fmt.Sprintf("structure is not a valid document: %v", err),
			Path:     "structure",
		})
		return NewResult(issues)
	}
	issues = append(issues, v.structureIssues(doc)...)
	return NewResult(issues)
}

// ValidateStructure 校验结构文档
func (v *Validator) ValidateStructure(doc *structure.Value) Result {
	return NewResult(v.structureIssues(doc))
}

func (v *Validator) metadataIssues(tm *model.TemplateModel) []Issue {
	var issues []Issue
	if tm.Code == "" {
		issues = append(issues, Issue{SeverityError, CodeEmptyCode, "template code must not be empty", "code"})
	}
	if tm.Name == "" {
		issues = append(issues, Issue{SeverityError, CodeEmptyName, "template name must not be empty", "name"})
	}
	if tm.VersionMajor < 0 || tm.VersionMinor < 0 || tm.VersionPatch < 0 {
		issues = append(issues, Issue{SeverityError, CodeNegativeVersion, "version numbers must not be negative", "version"})
	}
	if !model.ValidStatus(tm.Status) {
		issues = append(issues, Issue{SeverityError, CodeInvalidStatus, fmt.Sprintf("unknown template status %q", tm.Status), "status"})
	}
	if (tm.InheritanceType == model.InheritanceNone) != (tm.ParentTemplateID == nil) {
		issues = append(issues, Issue{SeverityError, CodeInheritanceMismatch, "inheritance type must be NONE exactly when no parent is set", "inheritance_type"})
	}
	// 上架就绪性: 公开模板缺描述只是告警
	if tm.IsPublic && tm.Description == "" {
		issues = append(issues, Issue{SeverityWarning, CodeMissingDescription, "public templates should carry a description", "description"})
	}
	return issues
}

func (v *Validator) structureIssues(doc *structure.Value) []Issue {
	var issues []Issue
	if doc == nil || doc.Kind() != structure.KindObject {
		return append(issues, Issue{SeverityError, CodeMissingMenu, "structure must be an object with a menu section", ""})
	}

	menu, ok := doc.Get("menu")
	if !ok {
		issues = append(issues, Issue{SeverityError, CodeMissingMenu, "structure has no menu section", "menu"})
	} else if menu.Kind() != structure.KindObject {
		issues = append(issues, Issue{SeverityError, CodeInvalidMenu, "menu must be an object", "menu"})
	} else {
		items, ok := menu.Get("items")
		if !ok || items.Kind() != structure.KindArray {
			issues = append(issues, Issue{SeverityError, CodeMissingMenuItems, "menu must carry an items array", "menu.items"})
		} else {
			issues = append(issues, v.menuItemIssues(items, "menu.items")...)
		}
	}

	if mappings, ok := doc.Get("data_mappings"); ok {
		issues = append(issues, v.dataMappingIssues(mappings, "data_mappings")...)
	}
	return issues
}

func (v *Validator) menuItemIssues(items *structure.Value, path string) []Issue {
	var issues []Issue
	seen := make(map[string]bool) // 同层级内的 id 去重
	for i, item := range items.Items() {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item.Kind() != structure.KindObject {
			issues = append(issues, Issue{SeverityError, CodeInvalidItemType, "menu item must be an object", itemPath})
			continue
		}

		if id, ok := item.Get("id"); ok {
			if s, ok := id.AsString(); ok {
				if seen[s] {
					issues = append(issues, Issue{SeverityError, CodeDuplicateItemID, fmt.Sprintf("duplicate menu item id %q", s), itemPath})
				}
				seen[s] = true
			}
		}

		typeVal, ok := item.Get("type")
		typeStr, isStr := "", false
		if ok {
			typeStr, isStr = typeVal.AsString()
		}
		if !ok || !isStr || !menuItemTypes[typeStr] {
			issues = append(issues, Issue{SeverityError, CodeInvalidItemType, "menu item type must be one of dashboard/group/link", itemPath + ".type"})
		}

		if label, ok := item.Get("label"); !ok {
			issues = append(issues, Issue{SeverityError, CodeMissingItemLabel, "menu item requires a label", itemPath + ".label"})
		} else if s, isStr := label.AsString(); !isStr || s == "" {
			issues = append(issues, Issue{SeverityError, CodeMissingItemLabel, "menu item label must be a non-empty string", itemPath + ".label"})
		}

		if dashboard, ok := item.Get("dashboard"); ok {
			issues = append(issues, v.dashboardIssues(dashboard, itemPath+".dashboard")...)
		}
		if children, ok := item.Get("children"); ok && children.Kind() == structure.KindArray {
			issues = append(issues, v.menuItemIssues(children, itemPath+".children")...)
		}
	}
	return issues
}

func (v *Validator) dashboardIssues(dashboard *structure.Value, path string) []Issue {
	var issues []Issue
	if dashboard.Kind() != structure.KindObject {
		return append(issues, Issue{SeverityError, CodeMissingLayout, "dashboard must be an object", path})
	}

	layout, ok := dashboard.Get("layout")
	if !ok {
		issues = append(issues, Issue{SeverityError, CodeMissingLayout, "dashboard requires a layout", path + ".layout"})
	} else {
		issues = append(issues, v.layoutIssues(layout, path+".layout")...)
	}

	if widgets, ok := dashboard.Get("widgets"); ok && widgets.Kind() == structure.KindArray {
		issues = append(issues, v.widgetIssues(widgets, path+".widgets")...)
	}
	return issues
}

func (v *Validator) layoutIssues(layout *structure.Value, path string) []Issue {
	var issues []Issue
	if layout.Kind() != structure.KindObject {
		return append(issues, Issue{SeverityError, CodeInvalidLayout, "layout must be an object", path})
	}
	typeVal, ok := layout.Get("type")
	if !ok {
		return append(issues, Issue{SeverityError, CodeInvalidLayout, "layout requires a type", path + ".type"})
	}
	typeStr, isStr := typeVal.AsString()
	if !isStr {
		return append(issues, Issue{SeverityError, CodeInvalidLayout, "layout type must be a string", path + ".type"})
	}
	switch typeStr {
	case "grid":
		if cols, ok := layout.Get("columns"); !ok {
			issues = append(issues, Issue{SeverityError, CodeInvalidLayout, "grid layout requires columns", path + ".columns"})
		} else if n, isNum := cols.AsNumber(); !isNum || n <= 0 {
			issues = append(issues, Issue{SeverityError, CodeInvalidLayout, "grid columns must be a positive number", path + ".columns"})
		}
	case "responsive_grid":
		if bp, ok := layout.Get("breakpoints"); !ok || bp.Kind() != structure.KindObject {
			issues = append(issues, Issue{SeverityError, CodeInvalidLayout, "responsive_grid layout requires a breakpoints object", path + ".breakpoints"})
		}
	default:
		issues = append(issues, Issue{SeverityError, CodeInvalidLayout, fmt.Sprintf("unknown layout type %q", typeStr), path + ".type"})
	}
	return issues
}

// widgetRect 组件占位矩形
type widgetRect struct {
	x, y, w, h float64
	path       string
}

func (v *Validator) widgetIssues(widgets *structure.Value, path string) []Issue {
	var issues []Issue
	seen := make(map[string]bool)
	var rects []widgetRect
	for i, widget := range widgets.Items() {
		widgetPath := fmt.Sprintf("%s[%d]", path, i)
		if widget.Kind() != structure.KindObject {
			issues = append(issues, Issue{SeverityError, CodeMissingWidgetCode, "widget must be an object", widgetPath})
			continue
		}

		if id, ok := widget.Get("id"); ok {
			if s, ok := id.AsString(); ok {
				if seen[s] {
					issues = append(issues, Issue{SeverityError, CodeDuplicateWidgetID, fmt.Sprintf("duplicate widget id %q", s), widgetPath})
				}
				seen[s] = true
			}
		}

		if code, ok := widget.Get("widget_code"); !ok {
			issues = append(issues, Issue{SeverityError, CodeMissingWidgetCode, "widget requires a widget_code", widgetPath + ".widget_code"})
		} else if s, isStr := code.AsString(); !isStr || s == "" {
			issues = append(issues, Issue{SeverityError, CodeMissingWidgetCode, "widget_code must be a non-empty string", widgetPath + ".widget_code"})
		}

		pos, ok := widget.Get("position")
		if !ok {
			issues = append(issues, Issue{SeverityError, CodeMissingWidgetPosition, "widget requires a position", widgetPath + ".position"})
		} else if rect, rectOK := positionRect(pos, widgetPath+".position"); !rectOK {
			issues = append(issues, Issue{SeverityError, CodeInvalidPosition, "position requires numeric x/y/w/h with positive size", widgetPath + ".position"})
		} else {
			rects = append(rects, rect)
		}

		if reqs, ok := widget.Get("data_requirements"); ok {
			issues = append(issues, v.dataRequirementIssues(reqs, widgetPath+".data_requirements")...)
		}
	}

	// 占位重叠只告警,不阻断
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			if rectsOverlap(rects[i], rects[j]) {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Code:     CodeOverlappingWidgets,
					Message:  fmt.Sprintf("widget at %s overlaps widget at %s", rects[i].path, rects[j].path),
					Path:     rects[j].path,
				})
			}
		}
	}
	return issues
}

func positionRect(pos *structure.Value, path string) (widgetRect, bool) {
	if pos.Kind() != structure.KindObject {
		return widgetRect{}, false
	}
	get := func(key string) (float64, bool) {
		val, ok := pos.Get(key)
		if !ok {
			return 0, false
		}
		return val.AsNumber()
	}
	x, xok := get("x")
	y, yok := get("y")
	w, wok := get("w")
	h, hok := get("h")
	if !xok || !yok || !wok || !hok || x < 0 || y < 0 || w <= 0 || h <= 0 {
		return widgetRect{}, false
	}
	return widgetRect{x: x, y: y, w: w, h: h, path: path}, true
}

func rectsOverlap(a, b widgetRect) bool {
	return a.x < b.x+b.w && b.x < a.x+a.w && a.y < b.y+b.h && b.y < a.y+a.h
}

func (v *Validator) dataRequirementIssues(reqs *structure.Value, path string) []Issue {
	var issues []Issue
	if reqs.Kind() != structure.KindObject {
		return append(issues, Issue{SeverityError, CodeInvalidDataMappings, "data_requirements must map dataset to field list", path})
	}
	if v.catalog == nil {
		return issues
	}
	for _, dataset := range reqs.Keys() {
		known, ok := v.catalog.Fields(dataset)
		if !ok {
			// 引用未知数据集是告警而不是错误
			issues = append(issues, Issue{SeverityWarning, CodeUnknownDataset, fmt.Sprintf("dataset %q is not registered", dataset), path + "." + dataset})
			continue
		}
		knownSet := make(map[string]bool, len(known))
		for _, f := range known {
			knownSet[f] = true
		}
		fields, _ := reqs.Get(dataset)
		if fields.Kind() != structure.KindArray {
			continue
		}
		for _, field := range fields.Items() {
			if name, ok := field.AsString(); ok && !knownSet[name] {
				issues = append(issues, Issue{SeverityWarning, CodeUnknownField, fmt.Sprintf("field %q is not registered for dataset %q", name, dataset), path + "." + dataset})
			}
		}
	}
	return issues
}

func (v *Validator) dataMappingIssues(mappings *structure.Value, path string) []Issue {
	var issues []Issue
	if mappings.Kind() != structure.KindObject {
		return append(issues, Issue{SeverityError, CodeInvalidDataMappings, "data_mappings must be an object", path})
	}

	if datasets, ok := mappings.Get("required_datasets"); ok {
		if datasets.Kind() != structure.KindArray {
			issues = append(issues, Issue{SeverityError, CodeInvalidDataMappings, "required_datasets must be an array of dataset names", path + ".required_datasets"})
		} else {
			for i, ds := range datasets.Items() {
				name, isStr := ds.AsString()
				if !isStr {
					issues = append(issues, Issue{SeverityError, CodeInvalidDataMappings, "required_datasets entries must be strings", fmt.Sprintf("%s.required_datasets[%d]", path, i)})
					continue
				}
				if v.catalog != nil {
					if _, known := v.catalog.Fields(name); !known {
						issues = append(issues, Issue{SeverityWarning, CodeUnknownDataset, fmt.Sprintf("dataset %q is not registered", name), fmt.Sprintf("%s.required_datasets[%d]", path, i)})
					}
				}
			}
		}
	}

	if fieldMappings, ok := mappings.Get("field_mappings"); ok {
		if fieldMappings.Kind() != structure.KindObject {
			issues = append(issues, Issue{SeverityError, CodeInvalidDataMappings, "field_mappings must map dataset to field list", path + ".field_mappings"})
		} else {
			for _, dataset := range fieldMappings.Keys() {
				fields, _ := fieldMappings.Get(dataset)
				if fields.Kind() != structure.KindArray {
					issues = append(issues, Issue{SeverityError, CodeInvalidDataMappings, "field_mappings values must be arrays", path + ".field_mappings." + dataset})
					continue
				}
				for i, field := range fields.Items() {
					if _, isStr := field.AsString(); !isStr {
						issues = append(issues, Issue{SeverityError, CodeInvalidDataMappings, "field names must be strings", fmt.Sprintf("%s.field_mappings.%s[%d]", path, dataset, i)})
					}
				}
			}
		}
	}
	return issues
}
