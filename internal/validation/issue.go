package validation

// Severity 校验问题等级
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issue 一条校验问题,每次校验调用都重新生成,不做持久化
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Path     string   `json:"path"`
}

// Result 校验结果: 是否可用由调用方的阻断策略决定,
// 这里固定为 "没有 ERROR 即可用",WARNING/INFO 不阻断
type Result struct {
	IsValid bool    `json:"is_valid"`
	Issues  []Issue `json:"issues"`
}

// NewResult 由问题列表构造结果
func NewResult(issues []Issue) Result {
	valid := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			valid = false
			break
		}
	}
	if issues == nil {
		issues = []Issue{}
	}
	return Result{IsValid: valid, Issues: issues}
}

// 校验问题代码
const (
	CodeMissingMenu           = "MISSING_MENU"
	CodeInvalidMenu           = "INVALID_MENU"
	CodeMissingMenuItems      = "MISSING_MENU_ITEMS"
	CodeInvalidItemType       = "INVALID_ITEM_TYPE"
	CodeMissingItemLabel      = "MISSING_ITEM_LABEL"
	CodeDuplicateItemID       = "DUPLICATE_ITEM_ID"
	CodeMissingLayout         = "MISSING_LAYOUT"
	CodeInvalidLayout         = "INVALID_LAYOUT"
	CodeMissingWidgetCode     = "MISSING_WIDGET_CODE"
	CodeMissingWidgetPosition = "MISSING_WIDGET_POSITION"
	CodeInvalidPosition       = "INVALID_POSITION"
	CodeDuplicateWidgetID     = "DUPLICATE_WIDGET_ID"
	CodeOverlappingWidgets    = "OVERLAPPING_WIDGETS"
	CodeUnknownDataset        = "UNKNOWN_DATASET"
	CodeUnknownField          = "UNKNOWN_FIELD"
	CodeInvalidDataMappings   = "INVALID_DATA_MAPPINGS"

	CodeEmptyCode           = "EMPTY_CODE"
	CodeEmptyName           = "EMPTY_NAME"
	CodeNegativeVersion     = "NEGATIVE_VERSION"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeInheritanceMismatch = "INHERITANCE_MISMATCH"
	CodeMissingDescription  = "MISSING_DESCRIPTION"

	CodeSchemaMissingSection     = "SCHEMA_MISSING_SECTION"
	CodeSchemaUnsupportedLayout  = "SCHEMA_UNSUPPORTED_LAYOUT"
	CodeSchemaMissingWidgetField = "SCHEMA_MISSING_WIDGET_FIELD"
)
